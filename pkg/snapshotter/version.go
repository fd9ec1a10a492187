package snapshotter

const (
	// Kind is the document kind of a collection run.
	Kind = "Facts"

	// Metadata keys recorded on every document.
	MetadataRunID      = "run-id"
	MetadataSourceNode = "source-node"
	MetadataVersion    = "facts-version"
)
