// Command connectomes is a small terminal front end to the dataset
// registry: list datasets, export skeletons and meshes, inspect cutouts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/navis-org/connectomes"
	"github.com/navis-org/connectomes/backend/catmaid"
	"github.com/navis-org/connectomes/backend/chunkedgraph"
	"github.com/navis-org/connectomes/backend/dvidnode"
	"github.com/navis-org/connectomes/backend/neuprint"
	"github.com/navis-org/connectomes/backend/precomputed"
	"github.com/navis-org/connectomes/connectome"
	"github.com/navis-org/connectomes/dataset"
)

var (
	showHelp bool
	verbose  bool
	output   string
)

const helpMessage = `
connectomes provides uniform access to connectomics datasets

	usage: connectomes [options] <command>

Commands:

	datasets
	version
	skeleton <dataset> <neuron id>      (writes SWC, see -o)
	mesh <dataset> <neuron id>
	cutout <dataset> <x0:x1> <y0:y1> <z0:z1>
	find <dataset> <name or type>
	partners <dataset> <neuron id>

Set ` + connectomes.ConfigEnv + ` to point at a TOML config file for servers,
tokens, and cache sizes.
`

func init() {
	flag.BoolVar(&showHelp, "h", false, "Show help message")
	flag.BoolVar(&verbose, "verbose", false, "Run in verbose mode")
	flag.StringVar(&output, "o", "", "Output file for skeleton/mesh export")
}

func main() {
	flag.Parse()
	if showHelp || flag.NArg() == 0 {
		fmt.Print(helpMessage + "\n")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if verbose {
		connectome.SetLogMode(connectome.DebugMode)
	} else {
		connectome.SetLogMode(connectome.WarningMode)
	}
	defer connectome.LogShutdown()

	if err := doCommand(flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func doCommand(args []string) error {
	switch args[0] {
	case "datasets":
		for _, name := range connectomes.Datasets() {
			fmt.Println(name)
		}
		return nil
	case "version":
		fmt.Println("Backend clients:")
		fmt.Printf("  catmaid       %s\n", catmaid.Version)
		fmt.Printf("  chunkedgraph  %s\n", chunkedgraph.Version)
		fmt.Printf("  dvid          %s\n", dvidnode.Version)
		fmt.Printf("  neuprint      %s\n", neuprint.Version)
		fmt.Printf("  precomputed   %s\n", precomputed.Version)
		return nil
	case "skeleton":
		return doSkeleton(args[1:])
	case "mesh":
		return doMesh(args[1:])
	case "cutout":
		return doCutout(args[1:])
	case "find":
		return doFind(args[1:])
	case "partners":
		return doPartners(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func getDataset(name string) (*dataset.Dataset, error) {
	return connectomes.Get(name)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad neuron id %q: %v", s, err)
	}
	return id, nil
}

func doSkeleton(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: connectomes skeleton <dataset> <neuron id>")
	}
	d, err := getDataset(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	neurons, err := d.Skeleton().Get(context.Background(), id)
	if err != nil {
		return err
	}
	n := neurons[0]
	fmt.Printf("%s\n", n)
	if output == "" {
		return nil
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := connectome.WriteSWC(f, n); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", output)
	return nil
}

func doMesh(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: connectomes mesh <dataset> <neuron id>")
	}
	d, err := getDataset(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	neurons, err := d.Mesh().Get(context.Background(), id)
	if err != nil {
		return err
	}
	n := neurons[0]
	fmt.Printf("%s\n", n)
	if output != "" {
		data := connectome.EncodeNGMesh(n)
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%s)\n", output, humanize.Bytes(uint64(len(data))))
	}
	return nil
}

// parseRange parses "beg:end".
func parseRange(s string) (connectome.Range, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return connectome.Range{}, fmt.Errorf("bad range %q, expected beg:end", s)
	}
	beg, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return connectome.Range{}, fmt.Errorf("bad range %q: %v", s, err)
	}
	end, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return connectome.Range{}, fmt.Errorf("bad range %q: %v", s, err)
	}
	return connectome.NewRange(int32(beg), int32(end)), nil
}

func doCutout(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: connectomes cutout <dataset> <x0:x1> <y0:y1> <z0:z1>")
	}
	d, err := getDataset(args[0])
	if err != nil {
		return err
	}
	var ranges [3]connectome.Range
	for i := 0; i < 3; i++ {
		if ranges[i], err = parseRange(args[1+i]); err != nil {
			return err
		}
	}
	vol, err := d.Segmentation().Slice(context.Background(), ranges[0], ranges[1], ranges[2])
	if err != nil {
		return err
	}
	labels := make(map[uint64]struct{})
	for _, label := range vol.Data {
		labels[label] = struct{}{}
	}
	fmt.Printf("%s: %d distinct labels, %s of data\n", vol, len(labels),
		humanize.Bytes(uint64(len(vol.Data)*8)))
	return nil
}

func doFind(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: connectomes find <dataset> <name or type>")
	}
	d, err := getDataset(args[0])
	if err != nil {
		return err
	}
	records, err := d.Annotations().Find(context.Background(), dataset.AnnotationQuery{
		Name: args[1],
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%d\t%s\t%s\n", rec.ID, rec.Name, rec.Type)
	}
	return nil
}

func doPartners(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: connectomes partners <dataset> <neuron id>")
	}
	d, err := getDataset(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	ctx := context.Background()
	outgoing, err := d.Connectivity().Edges(ctx, []uint64{id}, nil)
	if err != nil {
		return err
	}
	incoming, err := d.Connectivity().Edges(ctx, nil, []uint64{id})
	if err != nil {
		return err
	}
	for _, e := range outgoing {
		fmt.Printf("%d\t->\t%d\t%d\n", e.Source, e.Target, e.Weight)
	}
	for _, e := range incoming {
		fmt.Printf("%d\t<-\t%d\t%d\n", e.Target, e.Source, e.Weight)
	}
	return nil
}
