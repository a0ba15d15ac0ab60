package hostinfo

// Budget derivation ratios. Each dependent service receives a fixed share
// of the host's total memory; divisions truncate (floor) and saturate at
// the documented minimums so extreme host profiles still yield usable,
// strictly positive values.
const (
	// dbMemoryDivisor gives the database a quarter of total memory.
	dbMemoryDivisor = 4

	// dbSharedBuffersDivisor sizes shared_buffers as a quarter of the
	// database's share.
	dbSharedBuffersDivisor = 4

	// dbWorkMemDivisor sizes work_mem as a hundredth of the database's
	// share.
	dbWorkMemDivisor = 100

	// redisMemoryDivisor gives the cache a tenth of total memory.
	redisMemoryDivisor = 10

	// redisMemoryCapMB is the upper bound for the cache budget.
	redisMemoryCapMB = 1024

	// appMemoryDivisor gives the application a twentieth of total memory.
	appMemoryDivisor = 20

	// appMemoryFloorMB and appMemoryCapMB clamp the application budget.
	appMemoryFloorMB = 128
	appMemoryCapMB   = 1024

	// maxWorkerProcesses caps reverse-proxy worker processes.
	maxWorkerProcesses = 8
)

// Budget contains the derived per-service resource limits computed from a
// host Profile. All fields are strictly positive for any Profile with at
// least 1 MB of memory and one CPU core.
type Budget struct {
	// DBMemoryMB is the memory limit for the database service.
	DBMemoryMB int `json:"db_memory_mb" yaml:"db_memory_mb"`

	// DBSharedBuffersMB is the database shared_buffers setting.
	DBSharedBuffersMB int `json:"db_shared_buffers_mb" yaml:"db_shared_buffers_mb"`

	// DBWorkMemMB is the database work_mem setting.
	DBWorkMemMB int `json:"db_work_mem_mb" yaml:"db_work_mem_mb"`

	// RedisMemoryMB is the cache maxmemory setting, capped at 1 GiB.
	RedisMemoryMB int `json:"redis_memory_mb" yaml:"redis_memory_mb"`

	// AppMemoryMB is the application memory limit, clamped to [128, 1024].
	AppMemoryMB int `json:"app_memory_mb" yaml:"app_memory_mb"`

	// WorkerProcesses is the reverse-proxy worker count, capped at 8.
	WorkerProcesses int `json:"worker_processes" yaml:"worker_processes"`
}

// DeriveBudget computes the resource budget for a host profile using fixed
// integer ratios. Divisions floor (Go integer division); every non-clamped
// field saturates at 1 so a pathologically small host still produces a
// positive configuration instead of a zero or negative one.
func DeriveBudget(p Profile) Budget {
	dbMemory := max(p.TotalMemoryMB/dbMemoryDivisor, 1)

	redisMemory := max(p.TotalMemoryMB/redisMemoryDivisor, 1)
	redisMemory = min(redisMemory, redisMemoryCapMB)

	appMemory := p.TotalMemoryMB / appMemoryDivisor
	appMemory = max(appMemory, appMemoryFloorMB)
	appMemory = min(appMemory, appMemoryCapMB)

	workers := max(p.CPUCores, 1)
	workers = min(workers, maxWorkerProcesses)

	return Budget{
		DBMemoryMB:        dbMemory,
		DBSharedBuffersMB: max(dbMemory/dbSharedBuffersDivisor, 1),
		DBWorkMemMB:       max(dbMemory/dbWorkMemDivisor, 1),
		RedisMemoryMB:     redisMemory,
		AppMemoryMB:       appMemory,
		WorkerProcesses:   workers,
	}
}
