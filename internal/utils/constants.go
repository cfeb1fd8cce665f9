package utils

import "time"

// HTTP handler timeouts
const (
	// DefaultRequestTimeout bounds ordinary requests
	DefaultRequestTimeout = 30 * time.Second

	// TrainRequestTimeout bounds training requests
	TrainRequestTimeout = 10 * time.Minute

	// EventPublishTimeout bounds publishing one lifecycle event
	EventPublishTimeout = 5 * time.Second
)

// Project file layout under <data_dir>/projects/<id>/
const (
	ProjectsFile  = "projects.json"
	SnapshotFile  = "snapshot.json"
	DataFile      = "data.csv"
	ModelFile     = "model.bin"
	TrainMetaFile = "train_meta.json"
)

// Preview and sampling
const (
	// PreviewRows is the number of head rows returned after an upload
	PreviewRows = 5

	// DefaultSampleLimit caps the points returned for plotting
	DefaultSampleLimit = 1000
)
