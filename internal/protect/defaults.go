// Package protect flags workspace paths that deserve a human look before
// an agent writes to them.
package protect

// DefaultPatterns are glob patterns for protected areas. ** spans any
// number of directories.
var DefaultPatterns = []string{
	"**/.git/**",
	"**/.relay/**",
	"**/auth/**",
	"**/security/**",
	"**/migrations/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
	"**/.ssh/**",
	"**/terraform/**",
	"**/helm/**",
	"**/k8s/**",
	"**/.github/workflows/**",
}

// DefaultKeywords are substrings of a path, matched case-insensitively.
var DefaultKeywords = []string{
	"password",
	"secret",
	"credential",
	"private",
	"oauth",
	"jwt",
	"rbac",
}

// DefaultFileTypes are protected file extensions.
var DefaultFileTypes = []string{
	".sql",
	".tf",
	".pem",
	".key",
	".env",
	".p12",
	".pfx",
	".jks",
	".keystore",
	".crt",
}
