package version

var (
	AppName = "candybear"
	Version = "dev"
)
