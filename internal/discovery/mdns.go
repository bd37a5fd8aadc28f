// ABOUTME: mDNS service discovery for decks
// ABOUTME: Advertises a running deck and lets remotes find decks on the local network
package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const (
	// ServiceType is the DNS-SD service a deck registers
	ServiceType = "_sendspin-deck._tcp"
	// Path is the WebSocket endpoint advertised in the TXT record
	Path = "/deck"
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Version     string
	Logger      zerolog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// DeckInfo describes a discovered deck
type DeckInfo struct {
	Name    string
	Host    string
	Port    int
	Path    string
	Version string
}

// Addr returns host:port for dialing.
func (d DeckInfo) Addr() string {
	return net.JoinHostPort(d.Host, fmt.Sprint(d.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		log:    config.Logger.With().Str("component", "discovery").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Advertise announces this deck via mDNS until Stop is called.
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info().Str("name", m.config.ServiceName).Int("port", m.config.Port).Msg("Advertising deck")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Stop withdraws the advertisement
func (m *Manager) Stop() {
	m.cancel()
}

func txtRecords(cfg Config) []string {
	txt := []string{"path=" + Path}
	if cfg.Version != "" {
		txt = append(txt, "version="+cfg.Version)
	}
	return txt
}

// Browse queries the network for decks for at most timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]DeckInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []DeckInfo, 1)

	go func() {
		var decks []DeckInfo
		seen := make(map[string]bool)
		for entry := range entries {
			d, ok := fromEntry(entry)
			if !ok || seen[d.Addr()] {
				continue
			}
			seen[d.Addr()] = true
			decks = append(decks, d)
		}
		found <- decks
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = timeout
	params.Entries = entries
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() {
		errc <- mdns.Query(params)
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
		// mdns.Query still owns entries until it returns
		go func() {
			<-errc
			close(entries)
		}()
		return nil, err
	}
	close(entries)
	decks := <-found

	if err != nil {
		return decks, fmt.Errorf("mdns query: %w", err)
	}
	return decks, nil
}

func fromEntry(entry *mdns.ServiceEntry) (DeckInfo, bool) {
	if entry == nil || !strings.Contains(entry.Name, ServiceType) {
		return DeckInfo{}, false
	}

	d := DeckInfo{
		Name: instanceName(entry.Name),
		Port: entry.Port,
		Path: Path,
	}
	switch {
	case entry.AddrV4 != nil:
		d.Host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		d.Host = entry.AddrV6.String()
	default:
		return DeckInfo{}, false
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "path":
			d.Path = value
		case "version":
			d.Version = value
		}
	}
	return d, true
}

// instanceName strips the service and domain from a full instance name.
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i >= 0 {
		full = full[:i]
	}
	return strings.ReplaceAll(full, `\ `, " ")
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
