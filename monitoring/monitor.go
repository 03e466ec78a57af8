// Package monitoring turns a running simulation into an HTTP server that
// shows the simulated time, the nodes, the calls in progress and the
// process resources, and that can pause and resume the engine.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/gsmsim/gsm/msc"
	"github.com/sarchlab/gsmsim/gsm/node"
	"github.com/sarchlab/gsmsim/monitoring/web"
	"github.com/sarchlab/gsmsim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     sim.Engine
	nodes      []*node.Node
	buffers    []sim.Buffer
	portNumber int
	log        *zap.Logger
	registry   *prometheus.Registry

	pauseLock sync.Mutex
	paused    bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor(engine sim.Engine, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}

	m := &Monitor{
		engine:   engine,
		log:      log,
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(newNodeCollector(m))

	return m
}

// WithPortNumber sets the port number of the monitor. Ports under 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		m.log.Warn("monitor port not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterNode adds a node and its radio queues to the monitor.
func (m *Monitor) RegisterNode(n *node.Node) {
	m.nodes = append(m.nodes, n)

	if q := n.Context().Radio; q != nil {
		m.buffers = append(m.buffers, q.Buffers()...)
	}
}

// Registry returns the Prometheus registry exported on /metrics.
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router serving the monitor API and page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/nodes", m.listNodes)
	r.HandleFunc("/api/node/{name}", m.nodeDetails)
	r.HandleFunc("/api/field/{json}", m.fieldValue)
	r.HandleFunc("/api/calls", m.listCalls)
	r.HandleFunc("/api/buffers", m.listBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// monitor page.
func (m *Monitor) StartServer() (string, error) {
	addr := ":0"
	if m.portNumber > 0 {
		addr = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("starting the monitor: %w", err)
	}

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("monitor stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// StopServer closes the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// inspect runs f while the engine is held between two events.
func (m *Monitor) inspect(f func()) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	if m.paused {
		f()
		return
	}

	m.engine.Pause()
	defer m.engine.Continue()

	f()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	m.engine.Pause()
	m.paused = true

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.pauseLock.Lock()
	defer m.pauseLock.Unlock()

	m.engine.Continue()
	m.paused = false

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%.10f}", float64(m.engine.CurrentTime()))
}

type nodeRsp struct {
	Name string `json:"name"`
	ID   uint32 `json:"id"`
	Kind string `json:"kind"`
}

func (m *Monitor) listNodes(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]nodeRsp, 0, len(m.nodes))
	for _, n := range m.nodes {
		rsp = append(rsp, nodeRsp{
			Name: n.Name(),
			ID:   n.ID(),
			Kind: n.Kind().String(),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) findNodeOr404(w http.ResponseWriter, name string) *node.Node {
	for _, n := range m.nodes {
		if n.Name() == name {
			return n
		}
	}

	http.Error(w, "node not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) nodeDetails(w http.ResponseWriter, r *http.Request) {
	n := m.findNodeOr404(w, mux.Vars(r)["name"])
	if n == nil {
		return
	}

	buf, err := m.serialize(n.Role(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	_, _ = w.Write(buf)
}

// serialize dumps one level of root, starting from the field path entry.
// goseth panics on kinds it cannot walk, such as arrays and funcs; those
// come back as errors.
func (m *Monitor) serialize(root any, entry []string) (out []byte, err error) {
	buf := bytes.NewBuffer(nil)

	m.inspect(func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("cannot serialize: %v", r)
			}
		}()

		serializer := goseth.NewSerializer()
		serializer.SetRoot(root)
		serializer.SetMaxDepth(1)

		if len(entry) > 0 {
			if err = serializer.SetEntryPoint(entry); err != nil {
				return
			}
		}

		err = serializer.Serialize(buf)
	})

	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type fieldReq struct {
	NodeName  string `json:"node_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) fieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	if err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n := m.findNodeOr404(w, req.NodeName)
	if n == nil {
		return
	}

	buf, err := m.serialize(n.Role(), strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, _ = w.Write(buf)
}

type legRsp struct {
	IMSI       string `json:"imsi"`
	MSISDN     string `json:"msisdn"`
	BS         uint32 `json:"bs"`
	Connection int32  `json:"connection"`
	RR         string `json:"rr"`
	CC         string `json:"cc"`
	Traffic    int32  `json:"traffic"`
	Handover   bool   `json:"handover"`
}

type callRsp struct {
	Switch string `json:"switch"`
	Index  int    `json:"index"`
	Origin legRsp `json:"origin"`
	Term   legRsp `json:"term"`
}

func makeLegRsp(l msc.LegSnapshot) legRsp {
	return legRsp{
		IMSI:       l.IMSI.String(),
		MSISDN:     l.MSISDN.String(),
		BS:         l.BSID,
		Connection: l.ConnectionID,
		RR:         l.RR.String(),
		CC:         l.CC.String(),
		Traffic:    l.TrafficConnectionID,
		Handover:   l.HandoverTrying,
	}
}

type callLister interface {
	Calls() []msc.CallSnapshot
}

func (m *Monitor) listCalls(w http.ResponseWriter, _ *http.Request) {
	rsp := []callRsp{}

	m.inspect(func() {
		for _, n := range m.nodes {
			sw, ok := n.Role().(callLister)
			if !ok {
				continue
			}

			for _, c := range sw.Calls() {
				rsp = append(rsp, callRsp{
					Switch: n.Name(),
					Index:  c.Index,
					Origin: makeLegRsp(c.Origin),
					Term:   makeLegRsp(c.Term),
				})
			}
		}
	})

	writeJSON(w, rsp)
}

type bufferRsp struct {
	Buffer string `json:"buffer"`
	Level  int    `json:"level"`
	Cap    int    `json:"cap"`
}

// listBuffers shows the fullest radio queues. The buffers of a node are the
// ones that existed when it was registered.
func (m *Monitor) listBuffers(w http.ResponseWriter, r *http.Request) {
	sortMethod, limit, offset, err := buffersParseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var rsp []bufferRsp

	m.inspect(func() {
		for _, b := range sortAndSelectBuffers(m.buffers, sortMethod, limit, offset) {
			rsp = append(rsp, bufferRsp{
				Buffer: b.Name(),
				Level:  b.Size(),
				Cap:    b.Capacity(),
			})
		}
	})

	writeJSON(w, rsp)
}

func buffersParseParams(r *http.Request) (sortMethod string, limit, offset int, err error) {
	q := r.URL.Query()

	sortMethod = q.Get("sort")
	if sortMethod == "" {
		sortMethod = "percent"
	}

	if sortMethod != "level" && sortMethod != "percent" {
		return "", 0, 0, fmt.Errorf(
			"invalid sort method %q, allowed values are level and percent",
			sortMethod)
	}

	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return "", 0, 0, err
		}
	}

	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return "", 0, 0, err
		}
	}

	if limit < 0 || offset < 0 {
		return "", 0, 0, errors.New("limit and offset must not be negative")
	}

	return sortMethod, limit, offset, nil
}

func bufferPercent(b sim.Buffer) float64 {
	return float64(b.Size()) / float64(b.Capacity())
}

// sortAndSelectBuffers orders the buffers, fullest first, and returns limit
// of them starting at offset. A zero limit keeps all the rest.
func sortAndSelectBuffers(
	buffers []sim.Buffer,
	sortMethod string,
	limit, offset int,
) []sim.Buffer {
	sorted := make([]sim.Buffer, len(buffers))
	copy(sorted, buffers)

	byLevel := sortMethod == "level"

	sort.SliceStable(sorted, func(i, j int) bool {
		sizeI, sizeJ := sorted[i].Size(), sorted[j].Size()
		pctI, pctJ := bufferPercent(sorted[i]), bufferPercent(sorted[j])

		if byLevel {
			if sizeI != sizeJ {
				return sizeI > sizeJ
			}

			return pctI > pctJ
		}

		if pctI != pctJ {
			return pctI > pctJ
		}

		return sizeI > sizeJ
	})

	if offset >= len(sorted) {
		return nil
	}

	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}

	return sorted
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, resourceRsp{CPUPercent: cpuPercent, MemorySize: mem.RSS})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
