package connectivity

import (
	"errors"
	"net"
	"testing"
)

func TestStaticGate(t *testing.T) {
	g := NewStaticGate(false)
	if g.IsOnline() {
		t.Fatalf("IsOnline() = true, want false")
	}
	g.SetOnline(true)
	if !g.IsOnline() {
		t.Fatalf("IsOnline() = false after SetOnline(true)")
	}
}

func TestInterfaceGate(t *testing.T) {
	loopback := net.Interface{Index: 1, Name: "lo", Flags: net.FlagUp | net.FlagLoopback}
	wlanDown := net.Interface{Index: 2, Name: "wlan0"}
	wlanUp := net.Interface{Index: 3, Name: "wlan1", Flags: net.FlagUp}
	addrs := map[string][]net.Addr{
		"lo":    {&net.IPNet{IP: net.IPv4(127, 0, 0, 1)}},
		"wlan0": {&net.IPNet{IP: net.IPv4(10, 0, 0, 2)}},
	}

	cases := []struct {
		name    string
		ifaces  []net.Interface
		extra   map[string][]net.Addr
		listErr error
		want    bool
	}{
		{name: "loopback only", ifaces: []net.Interface{loopback}, want: false},
		{name: "down interface", ifaces: []net.Interface{loopback, wlanDown}, want: false},
		{name: "up without address", ifaces: []net.Interface{wlanUp}, want: false},
		{name: "up with address", ifaces: []net.Interface{wlanUp}, extra: map[string][]net.Addr{"wlan1": {&net.IPNet{IP: net.IPv4(10, 0, 0, 3)}}}, want: true},
		{name: "list error", listErr: errors.New("denied"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &InterfaceGate{
				list: func() ([]net.Interface, error) { return tc.ifaces, tc.listErr },
				addr: func(iface net.Interface) ([]net.Addr, error) {
					if a, ok := tc.extra[iface.Name]; ok {
						return a, nil
					}
					return addrs[iface.Name], nil
				},
			}
			if got := g.IsOnline(); got != tc.want {
				t.Fatalf("IsOnline() = %v, want %v", got, tc.want)
			}
		})
	}
}
