package cloud

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultProbeTimeout bounds the reachability probe.
	DefaultProbeTimeout = 600 * time.Millisecond

	// MetadataAddress is the link-local instance metadata endpoint.
	MetadataAddress = "169.254.169.254:80"

	// MetadataBaseURL is the HTTP base for metadata requests.
	MetadataBaseURL = "http://169.254.169.254"

	metadataVersion = "2008-02-01"

	// UserDataKey is the provider key user data is stored under.
	UserDataKey = "userdata"
)

// Provider describes a cloud whose metadata service follows the EC2 layout.
type Provider struct {
	// Name is the plugin name and the top-level fact key.
	Name string

	// Exclusive lists providers whose hint rules this one out.
	Exclusive []string

	// Signatures are MAC addresses found in the neighbor cache of hosts on
	// this provider. An entry ending in ':' matches as a prefix.
	Signatures []string

	// Address is dialed by the reachability probe.
	Address string

	// MetadataRoot is the directory listing the metadata tree.
	MetadataRoot string

	// UserDataPath serves the instance user data.
	UserDataPath string
}

// EC2 is Amazon EC2.
var EC2 = Provider{
	Name:         "ec2",
	Exclusive:    []string{"rackspace", "gce", "azure", "eucalyptus"},
	Signatures:   []string{"fe:ff:ff:ff:ff:ff"},
	Address:      MetadataAddress,
	MetadataRoot: "/" + metadataVersion + "/meta-data/",
	UserDataPath: "/" + metadataVersion + "/user-data/",
}

// Eucalyptus is a private cloud exposing an EC2 compatible metadata service.
var Eucalyptus = Provider{
	Name:         "eucalyptus",
	Exclusive:    []string{"ec2"},
	Signatures:   []string{"d0:0d:"},
	Address:      MetadataAddress,
	MetadataRoot: "/" + metadataVersion + "/meta-data/",
	UserDataPath: "/" + metadataVersion + "/user-data/",
}

// AddressFromURL returns the host:port the reachability probe dials for a
// metadata base URL. The port defaults to the scheme's.
func AddressFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid metadata URL %q: %w", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("metadata URL %q has no host", raw)
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", fmt.Errorf("metadata URL %q has unsupported scheme %q", raw, u.Scheme)
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Matches reports whether mac matches one of the provider signatures.
func (p Provider) Matches(mac string) bool {
	mac = strings.ToLower(strings.TrimSpace(mac))
	for _, sig := range p.Signatures {
		sig = strings.ToLower(sig)
		if strings.HasSuffix(sig, ":") {
			if strings.HasPrefix(mac, sig) {
				return true
			}
			continue
		}
		if mac == sig {
			return true
		}
	}
	return false
}
