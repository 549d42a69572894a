package progress

import (
	"sync"
)

// slotBuffer 待持久化的 slot 记录
type slotBuffer struct {
	mu      sync.Mutex
	records []*SlotRecord
}

func newSlotBuffer() *slotBuffer {
	return &slotBuffer{}
}

func (b *slotBuffer) Add(record *SlotRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, record)
}

// Requeue 将写入失败的记录放回队首
func (b *slotBuffer) Requeue(records []*SlotRecord) {
	if len(records) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(records, b.records...)
}

func (b *slotBuffer) Flush() []*SlotRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	flushed := b.records
	b.records = nil
	return flushed
}

func (b *slotBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
