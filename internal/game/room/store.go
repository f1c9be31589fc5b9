package room

import "sync"

// Store 房间注册表抽象：按房间号存取活跃房间
// 注入接口而非隐藏单例，便于替换为分片或外部实现
type Store interface {
	Get(code string) (*Room, bool)
	Put(room *Room)
	Delete(code string)
	Range(fn func(room *Room) bool)
	Len() int
}

// MemoryStore 默认的内存注册表
type MemoryStore struct {
	rooms map[string]*Room
	mu    sync.RWMutex
}

// NewMemoryStore 创建内存注册表
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*Room)}
}

func (s *MemoryStore) Get(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *MemoryStore) Put(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = room
}

func (s *MemoryStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// Range 遍历快照，fn 返回 false 时提前结束
// 先复制引用再遍历，避免 fn 内部再进注册表锁
func (s *MemoryStore) Range(fn func(room *Room) bool) {
	s.mu.RLock()
	snapshot := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		snapshot = append(snapshot, room)
	}
	s.mu.RUnlock()

	for _, room := range snapshot {
		if !fn(room) {
			return
		}
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
