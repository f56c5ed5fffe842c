package handlers

import (
	"net/http"
	"runtime"
)

type healthResponse struct {
	Status       string             `json:"status"`
	ModelLoaded  bool               `json:"model_loaded"`
	GPUAvailable bool               `json:"gpu_available"`
	MemoryUsage  map[string]float64 `json:"memory_usage"`
}

// HandleHealth reports service health, model readiness, and process memory
// usage. It stays available regardless of the model's readiness state.
func (m Main) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	const gb = 1 << 30
	memory := map[string]float64{
		"heap_alloc_gb":  float64(ms.HeapAlloc) / gb,
		"heap_sys_gb":    float64(ms.HeapSys) / gb,
		"total_alloc_gb": float64(ms.TotalAlloc) / gb,
	}

	m.writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		ModelLoaded:  m.model.Ready(),
		GPUAvailable: m.model.GPUAvailable(),
		MemoryUsage:  memory,
	})
}
