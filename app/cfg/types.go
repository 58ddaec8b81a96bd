package cfg

type Cfg struct {
	// Paths
	FeedsDir   string
	OutputDir  string
	ArchiveDB  string
	MailConfig string

	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string

	// Active command and its arguments
	Command  string
	Source   string
	URL      string
	Label    string
	MaxItems int
	NoEnrich bool
	Mail     bool
}
