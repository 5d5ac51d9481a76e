package daemon

import (
	"net"
	"net/netip"
	"time"

	"github.com/samber/oops"

	"github.com/blocktrron/fastd/lib/buffer"
)

// maxTimerSleep bounds how long the loop blocks in the socket read when no
// timer is pending.
const maxTimerSleep = time.Second

// UDPTransport is the production datagram socket.
type UDPTransport struct {
	conn *net.UDPConn
}

// ListenUDP binds the daemon socket.
func ListenUDP(bind string) (*UDPTransport, error) {
	addr, err := netip.ParseAddrPort(bind)
	if err != nil {
		return nil, oops.Errorf("parsing bind address: %w", err)
	}
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, oops.Errorf("binding %s: %w", bind, err)
	}
	return &UDPTransport{conn: conn}, nil
}

func (u *UDPTransport) WriteTo(b []byte, addr netip.AddrPort) error {
	_, err := u.conn.WriteToUDPAddrPort(b, addr)
	return err
}

func (u *UDPTransport) Close() error {
	return u.conn.Close()
}

// Run drives the event loop over the UDP socket until stop is closed:
// socket reads and timer expiries interleave on this single goroutine.
func (d *Daemon) Run(u *UDPTransport, stop <-chan struct{}) error {
	scratch := make([]byte, d.conf.MTU+256)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		deadline := d.Now().Add(maxTimerSleep)
		if next, ok := d.NextTimer(); ok && next.Before(deadline) {
			deadline = next
		}
		if err := u.conn.SetReadDeadline(deadline); err != nil {
			return oops.Errorf("setting read deadline: %w", err)
		}

		n, addr, err := u.conn.ReadFromUDPAddrPort(scratch)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				d.RunTimers()
				continue
			}
			select {
			case <-stop:
				// The socket was closed during shutdown.
				return nil
			default:
			}
			return oops.Errorf("socket read: %w", err)
		}

		d.HandlePacket(addr, buffer.FromBytes(scratch[:n], 0))
		d.RunTimers()
	}
}
