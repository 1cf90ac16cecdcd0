package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// monitor exposes run progress over HTTP via the expvar package. Strictly a
// convenience for long runs; sampling never depends on it.
type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server

	Warmup      *expvar.Int
	Samples     *expvar.Int
	Chains      *expvar.Int
	TotalDraws  *expvar.Int
	Divergences *expvar.Int
	Saturations *expvar.Int
	RunTime     *expvar.Float
}

// Start begins the monitor
func (m *monitor) Start(addr string) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.info = expvar.NewMap("shrample-progress")
	m.stopped = make(chan struct{})
	m.server = &http.Server{
		Addr: addr,
	}

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.Warmup = expvar.NewInt("Warmup-Iterations")
	m.Samples = expvar.NewInt("Sampling-Iterations")
	m.Chains = expvar.NewInt("Chain-Count")
	m.TotalDraws = expvar.NewInt("Total-Draws")
	m.Divergences = expvar.NewInt("Divergences")
	m.Saturations = expvar.NewInt("Depth-Saturations")
	m.RunTime = expvar.NewFloat("Run-Time")

	// Actual server that will close the stopped channel on exit
	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
