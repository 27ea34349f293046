package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = Mark(ClassQuota, errors.New("quota requests exceeded"))
	ErrQuotaCounterOverflow  = Mark(ClassQuota, errors.New("quota counter overflow"))
)

// QuotaNow captures the current request counter for a caller.
type QuotaNow struct {
	ReqCount uint32
	EpochID  uint64
}

// Quota bounds how many operations a caller may submit per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32
	EpochSeconds        uint32
}

// EpochOf maps a unix timestamp onto the quota epoch.
func (q Quota) EpochOf(unix int64) uint64 {
	if q.EpochSeconds == 0 || unix <= 0 {
		return 0
	}
	return uint64(unix) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether addReq more requests fit. The returned QuotaNow
// reflects the updated counters when the quota is not exceeded; on denial the
// previous counters are returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}
	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}
	return next, nil
}
