package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and download
// outcomes. Intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	downloadsTotal     = make(map[dlKey]int64)
	downloadBytesTotal = make(map[string]int64)
	tempFilesSwept     int64
	jobsTracked        int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type dlKey struct {
	Platform string
	Status   string
}

// RecordRequest increments the request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordDownload counts one terminal job outcome per platform.
func RecordDownload(platform, status string) {
	mu.Lock()
	defer mu.Unlock()
	downloadsTotal[dlKey{Platform: platform, Status: status}]++
}

// RecordDownloadBytes adds the published artifact size for a platform.
func RecordDownloadBytes(platform string, n int64) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	downloadBytesTotal[platform] += n
}

// RecordTempSwept counts scratch files removed by cleanup sweeps.
func RecordTempSwept(n int) {
	if n <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	tempFilesSwept += int64(n)
}

// SetJobsTracked records the current registry size. The registry never
// evicts, so this gauge is how its growth stays observable.
func SetJobsTracked(n int) {
	mu.Lock()
	defer mu.Unlock()
	jobsTracked = int64(n)
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP vidfetch_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE vidfetch_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		fmt.Fprintf(&b, "vidfetch_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP vidfetch_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE vidfetch_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP vidfetch_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE vidfetch_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "vidfetch_http_request_duration_ms_sum{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "vidfetch_http_request_duration_ms_count{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP vidfetch_downloads_total Terminal download outcomes by platform and status\n")
	b.WriteString("# TYPE vidfetch_downloads_total counter\n")

	var dlKeys []dlKey
	for k := range downloadsTotal {
		dlKeys = append(dlKeys, k)
	}
	sort.Slice(dlKeys, func(i, j int) bool {
		if dlKeys[i].Platform != dlKeys[j].Platform {
			return dlKeys[i].Platform < dlKeys[j].Platform
		}
		return dlKeys[i].Status < dlKeys[j].Status
	})

	for _, k := range dlKeys {
		fmt.Fprintf(&b, "vidfetch_downloads_total{platform=%q,status=%q} %d\n",
			k.Platform, k.Status, downloadsTotal[k])
	}

	b.WriteString("# HELP vidfetch_download_bytes_total Published artifact bytes by platform\n")
	b.WriteString("# TYPE vidfetch_download_bytes_total counter\n")

	var platforms []string
	for p := range downloadBytesTotal {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	for _, p := range platforms {
		fmt.Fprintf(&b, "vidfetch_download_bytes_total{platform=%q} %d\n", p, downloadBytesTotal[p])
	}

	b.WriteString("# HELP vidfetch_temp_files_swept_total Scratch files removed by cleanup sweeps\n")
	b.WriteString("# TYPE vidfetch_temp_files_swept_total counter\n")
	fmt.Fprintf(&b, "vidfetch_temp_files_swept_total %d\n", tempFilesSwept)

	b.WriteString("# HELP vidfetch_jobs_tracked Current number of jobs held in the registry\n")
	b.WriteString("# TYPE vidfetch_jobs_tracked gauge\n")
	fmt.Fprintf(&b, "vidfetch_jobs_tracked %d\n", jobsTracked)

	return b.String()
}
