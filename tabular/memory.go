package tabular

import "sync"

// MemoryTable はメモリ上の行をそのまま返すテーブルです。テストや生成済みデータの受け渡しに使います。
type MemoryTable struct {
	mu     sync.Mutex
	rows   []Row
	reads  int
	closed bool
}

// NewMemoryTable は rows を保持するテーブルを返します。
func NewMemoryTable(rows ...Row) *MemoryTable {
	return &MemoryTable{rows: rows}
}

// Rows は保持している行のコピーを返します。
func (t *MemoryTable) Rows() ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reads++
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = append(Row(nil), r...)
	}
	return out, nil
}

// Reads は Rows が呼ばれた回数です。
func (t *MemoryTable) Reads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads
}

// Closed は Close 済みかどうかを返します。
func (t *MemoryTable) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *MemoryTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}
