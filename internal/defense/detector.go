package defense

import "strings"

// probePaths are paths the chat server never serves but vulnerability
// scanners probe constantly.
var probePaths = []string{
	"/.env",
	"/.git/",
	"/.aws/",
	"/.htpasswd",
	"/.htaccess",
	"/wp-admin",
	"/wp-login",
	"/wp-content",
	"/phpmyadmin",
	"/phpinfo",
	"/config.json",
	"/secrets.json",
	"/backup",
	"/dump",
	"/api/.env",
	"/api/.git",
	"/api/config.json",
	"/api/secrets",
	"/.DS_Store",
	"/composer.json",
	"/web.config",
	"/server-status",
	"/cgi-bin/",
	"/shell",
	"/eval",
	"/exec",
}

// scannerUserAgents are user agent fragments of known scanning tools.
// Generic HTTP client strings (curl, Go-http-client) are NOT listed:
// the sibyl terminal client dials the WebSocket with the default Go
// user agent.
var scannerUserAgents = []string{
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"zgrab",
	"gobuster",
	"dirbuster",
	"wfuzz",
	"ffuf",
	"nuclei",
	"scanner",
	"exploit",
}

// IsProbePath reports whether a path matches known scanner probes.
// Prefix matching only, so /admin-dashboard style paths in a deployed
// frontend do not false-positive on shorter entries.
func IsProbePath(path string) bool {
	lower := strings.ToLower(path)
	for _, probe := range probePaths {
		if strings.HasPrefix(lower, probe) {
			return true
		}
	}
	return false
}

// IsScannerUserAgent reports whether a user agent belongs to a known
// scanning tool.
func IsScannerUserAgent(ua string) bool {
	lower := strings.ToLower(ua)
	for _, fragment := range scannerUserAgents {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
