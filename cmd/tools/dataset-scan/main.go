package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/corridor-data/v2xtrace/internal/discover"
	"github.com/corridor-data/v2xtrace/internal/fsutil"
)

func main() {
	var inputDir string
	var sample int
	var asJSON bool

	flag.StringVar(&inputDir, "input", ".", "directory to scan for JSON drive logs")
	flag.IntVar(&sample, "sample", discover.DefaultSamplePerFile, "objects sampled per file (0 reads files in full)")
	flag.BoolVar(&asJSON, "json", false, "print the summary as JSON")
	flag.Parse()

	sum, err := discover.Scan(fsutil.OSFileSystem{}, inputDir, sample)
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	if asJSON {
		out, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			log.Fatalf("failed to encode summary: %v", err)
		}
		os.Stdout.Write(append(out, '\n'))
		return
	}

	if sum.SampleLimit > 0 {
		fmt.Printf("Scanned %d files under %s (up to %d objects each)\n", sum.TotalFiles, inputDir, sum.SampleLimit)
	} else {
		fmt.Printf("Scanned %d files under %s (all objects)\n", sum.TotalFiles, inputDir)
	}
	fmt.Printf("  GNSS records:  %d\n", sum.GnssRecords)
	fmt.Printf("  V2X records:   %d\n", sum.V2XRecords)
	fmt.Printf("  Other records: %d\n", sum.OtherRecords)
	fmt.Printf("  Vehicles (%d): %s\n", len(sum.Vehicles), strings.Join(sum.Vehicles, ", "))
	fmt.Printf("  Message types: %s\n", strings.Join(sum.MessageTypes, ", "))
}
