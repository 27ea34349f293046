package token

import (
	"encoding/binary"
	"strings"
)

func (e *Engine) prefix(kind string) []byte {
	return []byte("token/" + e.symbol + "/" + kind + "/")
}

func (e *Engine) addrKey(kind string, addr [20]byte) []byte {
	return append(e.prefix(kind), addr[:]...)
}

func (e *Engine) balanceKey(addr [20]byte) []byte { return e.addrKey("balance", addr) }

func (e *Engine) allowanceKey(owner, spender [20]byte) []byte {
	return append(e.addrKey("allowance", owner), spender[:]...)
}

func (e *Engine) ibanKey(addr [20]byte) []byte { return e.addrKey("iban", addr) }

func (e *Engine) ownedKey(addr [20]byte) []byte { return e.addrKey("owned", addr) }

func (e *Engine) supplyKey() []byte     { return e.prefix("supply") }
func (e *Engine) pausedKey() []byte     { return e.prefix("paused") }
func (e *Engine) collateralKey() []byte { return e.prefix("collateral") }
func (e *Engine) isoSeqKey() []byte     { return e.prefix("iso-seq") }
func (e *Engine) barSeqKey() []byte     { return e.prefix("bar-seq") }

func (e *Engine) isoKey(seq uint64) []byte { return append(e.prefix("iso"), idBytes(seq)...) }

func (e *Engine) barKey(id uint64) []byte { return append(e.prefix("bar"), idBytes(id)...) }

func (e *Engine) serialKey(serial string) []byte {
	return append(e.prefix("bar-serial"), strings.TrimSpace(serial)...)
}

func idBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func idFromBytes(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
