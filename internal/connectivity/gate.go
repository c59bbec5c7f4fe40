// Package connectivity reports whether network-backed services can be tried.
// Gates only look at link state; they never send traffic.
package connectivity

import (
	"net"
	"sync/atomic"
)

// Gate is consulted before every online attempt.
type Gate interface {
	IsOnline() bool
}

// Setter is implemented by gates whose state is pushed by the platform.
type Setter interface {
	SetOnline(online bool)
}

// StaticGate holds the link state last reported by the phone side.
type StaticGate struct {
	online atomic.Bool
}

func NewStaticGate(online bool) *StaticGate {
	g := &StaticGate{}
	g.online.Store(online)
	return g
}

func (g *StaticGate) IsOnline() bool { return g.online.Load() }

func (g *StaticGate) SetOnline(online bool) { g.online.Store(online) }

// InterfaceGate treats the host as online when any non-loopback interface
// is up and has an address assigned.
type InterfaceGate struct {
	list func() ([]net.Interface, error)
	addr func(net.Interface) ([]net.Addr, error)
}

func NewInterfaceGate() *InterfaceGate {
	return &InterfaceGate{
		list: net.Interfaces,
		addr: func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
	}
}

func (g *InterfaceGate) IsOnline() bool {
	ifaces, err := g.list()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := g.addr(iface)
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true
		}
	}
	return false
}
