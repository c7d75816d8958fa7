package lock

import (
	"strconv"

	"github.com/EagleChen/mapmutex"
)

// Keyed is an in-process single-writer guard per key. TryLock gives up after
// a bounded number of backoff retries instead of blocking.
type Keyed struct {
	m *mapmutex.Mutex
}

type Config struct {
	MaxRetry  int
	MaxDelay  float64 // ns
	BaseDelay float64 // ns
	Factor    float64
	Jitter    float64
}

func DefaultConfig() Config {
	return Config{MaxRetry: 50, MaxDelay: 50_000_000, BaseDelay: 1_000, Factor: 1.5, Jitter: 0.2}
}

func New(cfg Config) *Keyed {
	if cfg.MaxRetry <= 0 {
		cfg = DefaultConfig()
	}
	return &Keyed{m: mapmutex.NewCustomizedMapMutex(cfg.MaxRetry, cfg.MaxDelay, cfg.BaseDelay, cfg.Factor, cfg.Jitter)}
}

func CheckKey(id int64) string { return "check:" + strconv.FormatInt(id, 10) }

func (k *Keyed) TryLock(key string) bool { return k.m.TryLock(key) }

func (k *Keyed) Unlock(key string) { k.m.Unlock(key) }

// Do runs fn while holding key. ok is false when the key stayed busy and fn did not run.
func (k *Keyed) Do(key string, fn func() error) (ok bool, err error) {
	if !k.m.TryLock(key) {
		return false, nil
	}
	defer k.m.Unlock(key)
	return true, fn()
}
