package registry

import (
	"github.com/navis-org/connectomes/backend/catmaid"
	"github.com/navis-org/connectomes/backend/chunkedgraph"
	"github.com/navis-org/connectomes/backend/dvidnode"
	"github.com/navis-org/connectomes/backend/neuprint"
	"github.com/navis-org/connectomes/backend/precomputed"
	"github.com/navis-org/connectomes/dataset"
)

// Environment variables holding auth tokens, matching the conventions of
// the Python client ecosystem.
const (
	neuprintTokenEnv = "NEUPRINT_APPLICATION_CREDENTIALS"
	caveTokenEnv     = "CAVE_TOKEN"
	catmaidTokenEnv  = "CATMAID_API_TOKEN"
)

// registerBuiltins fills the registry with the known datasets.  Every
// server/bucket default below can be overridden per dataset in the TOML
// config.
func registerBuiltins(r *Registry) {
	r.Register("hemibrain", buildHemibrain)
	r.Register("flywire", buildFlywire)
	r.Register("fanc", buildFanc)
	r.Register("microns-mm3", buildMicronsMm3)
	r.Register("microns-l23", buildMicronsL23)

	r.Register("vfb-fafb", catmaidBuilder("https://fafb.catmaid.virtualflybrain.org", 1,
		"https://doi.org/10.1016/j.cell.2018.06.019", "Zheng et al., Cell (2018)"))
	r.Register("vfb-l1em", catmaidBuilder("https://l1em.catmaid.virtualflybrain.org", 1,
		"https://doi.org/10.7554/eLife.29089", "Eichler et al., Nature (2017)"))
	r.Register("vfb-l3vnc", catmaidBuilder("https://l3vnc.catmaid.virtualflybrain.org", 1,
		"", "VFB L3 VNC mirror"))
	r.Register("vfb-fanc", catmaidBuilder("https://fanc.catmaid.virtualflybrain.org", 1,
		"", "VFB FANC mirror"))
	r.Register("vfb-fanc-jrc2018", catmaidBuilder("https://fanc.catmaid.virtualflybrain.org", 2,
		"", "VFB FANC mirror, JRC2018F space"))
	r.Register("vfb-abd1.5", catmaidBuilder("https://abd1.5.catmaid.virtualflybrain.org", 1,
		"", "VFB abdominal 1.5 mirror"))
	r.Register("vfb-iav-robo", catmaidBuilder("https://iav-robo.catmaid.virtualflybrain.org", 1,
		"", "VFB IAV-Robo mirror"))
	r.Register("vfb-iav-tnt", catmaidBuilder("https://iav-tnt.catmaid.virtualflybrain.org", 1,
		"", "VFB IAV-TNT mirror"))

	// Longer, backend-qualified spellings resolve to the same adapters.
	r.RegisterAlias("hemibrain-neuprint", "hemibrain")
	r.RegisterAlias("flywire-chunkedgraph", "flywire")
	r.RegisterAlias("vfb-fafb-catmaid", "vfb-fafb")
	r.RegisterAlias("vfb-l1-catmaid", "vfb-l1em")
	r.RegisterAlias("vfb-vnc-catmaid", "vfb-l3vnc")
}

// pick returns override if set, else def.
func pick(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

func pickInt(override, def int) int {
	if override != 0 {
		return override
	}
	return def
}

// buildHemibrain wires the Janelia hemibrain: neuPrint for skeletons,
// annotations, and connectivity, the public DVID node for segmentation and
// meshes.
func buildHemibrain(name string, dc DatasetConfig) (*dataset.Dataset, error) {
	token, err := dc.resolveToken(neuprintTokenEnv)
	if err != nil {
		return nil, err
	}
	np, err := neuprint.NewClient(
		pick(dc.Server, "https://neuprint.janelia.org"),
		"hemibrain:v1.2.1", token)
	if err != nil {
		return nil, err
	}
	dn := dvidnode.NewClient(pick(dc.DVIDServer, "https://hemibrain-dvid.janelia.org"),
		pick(dc.UUID, "52a13"))

	return dataset.New(dataset.Config{
		Name:         name,
		DOI:          "https://doi.org/10.7554/eLife.57443",
		Reference:    "Scheffer et al., eLife (2020)",
		Segmentation: dvidnode.NewSegmentationSource(dn, "segmentation"),
		Skeleton:     neuprint.NewSkeletonSource(np),
		Mesh:         dvidnode.NewMeshSource(dn, "segmentation_meshes"),
		Annotations:  neuprint.NewAnnotationSource(np),
		Connectivity: neuprint.NewConnectivitySource(np),
	}), nil
}

// buildFlywire wires FlyWire: the production ChunkedGraph for meshes and
// the flat materialized segmentation for cutouts.  Skeletons are not yet
// served upstream.
func buildFlywire(name string, dc DatasetConfig) (*dataset.Dataset, error) {
	token, err := dc.resolveToken(caveTokenEnv)
	if err != nil {
		return nil, err
	}
	opts := []chunkedgraph.Option{}
	if token != "" {
		opts = append(opts, chunkedgraph.WithToken(token))
	}
	if dc.LeavesCache != "" {
		opts = append(opts, chunkedgraph.WithLeavesCache(dc.LeavesCache))
	}
	cg := chunkedgraph.NewClient(
		pick(dc.Server, "https://prod.flywire-daf.com"),
		pick(dc.Table, "fly_v31"), opts...)

	return dataset.New(dataset.Config{
		Name:         name,
		DOI:          "https://doi.org/10.1038/s41592-021-01330-0",
		Reference:    "Dorkenwald et al., Nature Methods (2022)",
		Segmentation: precomputed.NewVolume(pick(dc.SegRef, "gs://flywire_v141_m630")),
		Mesh:         chunkedgraph.NewMeshSource(cg, pick(dc.MeshRef, "gs://flywire_v141_m630/meshes")),
	}), nil
}

// buildFanc wires the FANC adult nerve cord ChunkedGraph.  Only meshes are
// publicly served so far.
func buildFanc(name string, dc DatasetConfig) (*dataset.Dataset, error) {
	token, err := dc.resolveToken(caveTokenEnv)
	if err != nil {
		return nil, err
	}
	opts := []chunkedgraph.Option{}
	if token != "" {
		opts = append(opts, chunkedgraph.WithToken(token))
	}
	if dc.LeavesCache != "" {
		opts = append(opts, chunkedgraph.WithLeavesCache(dc.LeavesCache))
	}
	cg := chunkedgraph.NewClient(
		pick(dc.Server, "https://cave.fanc-fly.com"),
		pick(dc.Table, "mar2021_prod"), opts...)

	return dataset.New(dataset.Config{
		Name:      name,
		DOI:       "https://doi.org/10.1016/j.cell.2020.12.013",
		Reference: "Phelps et al., Cell (2021)",
		Mesh:      chunkedgraph.NewMeshSource(cg, pick(dc.MeshRef, "gs://fanc_v4_meshes")),
	}), nil
}

// buildMicronsMm3 wires the MICrONS minnie65 cubic-millimeter volume.
func buildMicronsMm3(name string, dc DatasetConfig) (*dataset.Dataset, error) {
	token, err := dc.resolveToken(caveTokenEnv)
	if err != nil {
		return nil, err
	}
	opts := []chunkedgraph.Option{}
	if token != "" {
		opts = append(opts, chunkedgraph.WithToken(token))
	}
	if dc.LeavesCache != "" {
		opts = append(opts, chunkedgraph.WithLeavesCache(dc.LeavesCache))
	}
	cg := chunkedgraph.NewClient(
		pick(dc.Server, "https://minnie.microns-daf.com"),
		pick(dc.Table, "minnie3_v1"), opts...)

	return dataset.New(dataset.Config{
		Name:         name,
		DOI:          "https://doi.org/10.1101/2021.07.28.454025",
		Reference:    "MICrONS Consortium (2021)",
		Segmentation: precomputed.NewVolume(pick(dc.SegRef, "gs://iarpa_microns/minnie/minnie65/seg")),
		Mesh:         chunkedgraph.NewMeshSource(cg, pick(dc.MeshRef, "gs://minnie65_meshes")),
	}), nil
}

// buildMicronsL23 wires the MICrONS layer 2/3 pilot volume, which is only
// published as a flat precomputed segmentation.
func buildMicronsL23(name string, dc DatasetConfig) (*dataset.Dataset, error) {
	return dataset.New(dataset.Config{
		Name:         name,
		DOI:          "https://doi.org/10.1101/2019.12.29.890319",
		Reference:    "Dorkenwald et al., bioRxiv (2019)",
		Segmentation: precomputed.NewVolume(pick(dc.SegRef, "gs://microns-seunglab/pinky100_v185/seg")),
	}), nil
}

// catmaidBuilder returns a builder for one CATMAID/VFB mirror, which serve
// skeletons, volume meshes, annotations, and connectivity but no
// segmentation.
func catmaidBuilder(server string, projectID int, doi, reference string) Builder {
	return func(name string, dc DatasetConfig) (*dataset.Dataset, error) {
		token, err := dc.resolveToken(catmaidTokenEnv)
		if err != nil {
			return nil, err
		}
		opts := []catmaid.Option{}
		if token != "" {
			opts = append(opts, catmaid.WithToken(token))
		}
		client := catmaid.NewClient(pick(dc.Server, server), opts...)
		project := pickInt(dc.ProjectID, projectID)

		return dataset.New(dataset.Config{
			Name:         name,
			DOI:          doi,
			Reference:    reference,
			Skeleton:     catmaid.NewSkeletonSource(client, project),
			Mesh:         catmaid.NewMeshSource(client, project),
			Annotations:  catmaid.NewAnnotationSource(client, project),
			Connectivity: catmaid.NewConnectivitySource(client, project),
		}), nil
	}
}
