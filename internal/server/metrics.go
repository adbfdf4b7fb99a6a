package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Metrics writes generator counters in the Prometheus text exposition format.
func (s *httpServer) Metrics(c *gin.Context) {
	m := s.server.gen.Metrics()
	node := s.server.gen.NodeID()
	origin := s.server.gen.Identity().Origin

	var buf bytes.Buffer
	counter := func(name, help string, v int64) {
		fmt.Fprintf(&buf, "# HELP %s %s\n", name, help)
		fmt.Fprintf(&buf, "# TYPE %s counter\n", name)
		fmt.Fprintf(&buf, "%s{node=\"%d\"} %d\n", name, node, v)
	}

	counter("seqgen_ids_generated_total", "Total number of IDs minted.", m.Generated)
	counter("seqgen_clock_regressions_total", "Mint calls failed because the clock moved backwards.", m.ClockRegressions)
	counter("seqgen_sequence_overflows_total", "Times a millisecond's sequence space was exhausted.", m.SequenceOverflows)
	counter("seqgen_spin_timeouts_total", "Mint calls failed waiting for the next millisecond.", m.SpinTimeouts)
	counter("seqgen_wait_time_microseconds_total", "Time spent waiting for the next millisecond.", m.WaitTimeMicros)

	fmt.Fprintf(&buf, "# HELP seqgen_node_info Node identity of this generator.\n")
	fmt.Fprintf(&buf, "# TYPE seqgen_node_info gauge\n")
	fmt.Fprintf(&buf, "seqgen_node_info{node=\"%d\",origin=\"%s\"} 1\n", node, origin)

	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}
