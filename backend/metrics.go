package backend

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Metrics struct {
	RequestID    string
	Status       int
	PayloadBytes int
	DNS          time.Duration
	TCP          time.Duration
	TLS          time.Duration
	Server       time.Duration // time to first byte
	Total        time.Duration
	ConnReused   bool
}

func metricsFrom(reqID string, payloadBytes int, resp *resty.Response) Metrics {
	ti := resp.Request.TraceInfo()
	return Metrics{
		RequestID:    reqID,
		Status:       resp.StatusCode(),
		PayloadBytes: payloadBytes,
		DNS:          ti.DNSLookup,
		TCP:          ti.TCPConnTime,
		TLS:          ti.TLSHandshake,
		Server:       ti.ServerTime,
		Total:        ti.TotalTime,
		ConnReused:   ti.IsConnReused,
	}
}

// Lines renders the metrics the way the chat view prints them.
func (m Metrics) Lines() []string {
	conn := "new"
	if m.ConnReused {
		conn = "reused"
	}
	return []string{
		fmt.Sprintf("upload:     %.1f KB (%s conn)", float64(m.PayloadBytes)/1024, conn),
		fmt.Sprintf("dns:        %dms", m.DNS.Milliseconds()),
		fmt.Sprintf("tcp:        %dms", m.TCP.Milliseconds()),
		fmt.Sprintf("tls:        %dms", m.TLS.Milliseconds()),
		fmt.Sprintf("ttfb:       %dms", m.Server.Milliseconds()),
		fmt.Sprintf("total:      %dms", m.Total.Milliseconds()),
	}
}
