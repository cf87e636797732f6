package limits

// Read limits for files and process output

const (
	// Descriptor caps how much of a .uproject or .uplugin file is read (1MB)
	Descriptor = 1 << 20

	// OutputLine is the longest tool output line passed to a sink (1MB).
	// Longer lines end the stream.
	OutputLine = 1 << 20
)
