// Package fingerprint derives a stable hardware identifier for license
// activation. Client programs call Generate once and send the result as
// hardware_id; the same machine always produces the same value.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// cacheTTL bounds how long a computed fingerprint is reused before the
// machine attributes are read again.
const cacheTTL = time.Hour

// Generator computes and caches the machine fingerprint.
type Generator struct {
	mu      sync.Mutex
	cached  string
	expires time.Time
}

// NewGenerator creates a fingerprint generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the machine fingerprint: a 64-character lowercase hex
// digest over the hostname, the primary MAC address and the platform.
func (g *Generator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cached != "" && time.Now().Before(g.expires) {
		return g.cached, nil
	}

	hostname, err := hostname()
	if err != nil {
		return "", err
	}
	mac, err := primaryMAC()
	if err != nil {
		return "", err
	}

	material := strings.Join([]string{
		hostname,
		mac,
		runtime.GOOS,
		runtime.GOARCH,
	}, "|")
	sum := sha256.Sum256([]byte(material))

	g.cached = hex.EncodeToString(sum[:])
	g.expires = time.Now().Add(cacheTTL)
	return g.cached, nil
}

// Generate is the package-level convenience over a shared generator.
func Generate() (string, error) {
	return defaultGenerator.Generate()
}

var defaultGenerator = NewGenerator()

func hostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("read hostname: %w", err)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("hostname is empty")
	}
	return name, nil
}

// primaryMAC picks the MAC of the first up, non-loopback interface, then
// falls back to any interface carrying one.
func primaryMAC() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("list network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := usableMAC(iface); mac != "" {
			return mac, nil
		}
	}
	for _, iface := range interfaces {
		if mac := usableMAC(iface); mac != "" {
			return mac, nil
		}
	}
	return "", fmt.Errorf("no usable MAC address found")
}

func usableMAC(iface net.Interface) string {
	mac := iface.HardwareAddr.String()
	if mac == "" || mac == "00:00:00:00:00:00" {
		return ""
	}
	return mac
}
