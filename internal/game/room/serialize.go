package room

import (
	"time"

	"chessarena/internal/game/rules"
	"chessarena/internal/protocol"
)

// Info 生成发给客户端的房间视图
func (r *Room) Info() *protocol.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLocked()
}

// SeatInfoOf 生成单个座位的客户端视图
func SeatInfoOf(seat *Seat) protocol.SeatInfo {
	return protocol.SeatInfo{
		SeatID:    seat.ID,
		Identity:  seat.Identity,
		Name:      seat.Name,
		Color:     string(seat.Color),
		Connected: seat.Connected,
		Automated: seat.Automated,
		Rating:    seat.Rating,
	}
}

// infoLocked 生成发给客户端的房间视图，必须持锁调用
func (r *Room) infoLocked() *protocol.RoomInfo {
	now := time.Now()
	info := &protocol.RoomInfo{
		RoomCode: r.Code,
		Phase:    r.Phase.String(),
		FEN:      r.State.FEN(),
		Turn:     string(r.State.Turn()),
		Minutes:  r.Settings.Minutes,
		Clock: protocol.ClockInfo{
			WhiteMs:   r.Clock.remaining(rules.White, now).Milliseconds(),
			BlackMs:   r.Clock.remaining(rules.Black, now).Milliseconds(),
			Running:   string(r.Clock.Running),
			UpdatedAt: now.UnixMilli(),
		},
	}

	for _, seat := range r.Seats {
		info.Seats = append(info.Seats, protocol.SeatInfo{
			SeatID:    seat.ID,
			Identity:  seat.Identity,
			Name:      seat.Name,
			Color:     string(seat.Color),
			Connected: seat.Connected,
			Automated: seat.Automated,
			Rating:    seat.Rating,
		})
	}

	for _, mv := range r.Moves {
		info.Moves = append(info.Moves, protocol.MoveInfo{
			Index: mv.Index,
			UCI:   mv.UCI,
			SAN:   mv.SAN,
			Color: string(mv.Color),
		})
	}

	if r.DrawOffer != "" {
		info.DrawOffer = string(r.DrawOffer)
	}
	if r.Finished != nil {
		info.Finished = &protocol.FinishedInfo{
			Reason: r.Finished.Reason,
			Winner: string(r.Finished.Winner),
			Loser:  string(r.Finished.Loser),
			At:     r.Finished.At.UnixMilli(),
		}
	}
	return info
}

// snapshotLocked 生成持久化快照，必须持锁调用
func (r *Room) snapshotLocked() *SnapshotData {
	now := time.Now()
	data := &SnapshotData{
		Code:      r.Code,
		Phase:     r.Phase.String(),
		WhiteMs:   r.Clock.remaining(rules.White, now).Milliseconds(),
		BlackMs:   r.Clock.remaining(rules.Black, now).Milliseconds(),
		Running:   string(r.Clock.Running),
		MovesUCI:  r.State.MovesUCI(),
		MovesSAN:  r.State.MovesSAN(),
		FEN:       r.State.FEN(),
		Minutes:   r.Settings.Minutes,
		CreatedAt: r.CreatedAt.Unix(),
	}

	for _, seat := range r.Seats {
		data.Seats = append(data.Seats, SeatData{
			SeatID:    seat.ID,
			Identity:  seat.Identity,
			Name:      seat.Name,
			Color:     string(seat.Color),
			Connected: seat.Connected,
			Automated: seat.Automated,
			Rating:    seat.Rating,
		})
	}

	if r.DrawOffer != "" {
		data.DrawOffer = string(r.DrawOffer)
	}
	if r.Finished != nil {
		data.Finished = &FinishedData{
			Reason: r.Finished.Reason,
			Winner: string(r.Finished.Winner),
			Loser:  string(r.Finished.Loser),
			At:     r.Finished.At.Unix(),
		}
	}
	return data
}

// finishedRecordLocked 生成终局存档记录，必须持锁调用
func (r *Room) finishedRecordLocked() *FinishedGameRecord {
	rec := &FinishedGameRecord{
		RoomCode:  r.Code,
		Reason:    r.Finished.Reason,
		Winner:    string(r.Finished.Winner),
		MovesUCI:  r.State.MovesUCI(),
		MovesSAN:  r.State.MovesSAN(),
		FEN:       r.State.FEN(),
		Minutes:   r.Settings.Minutes,
		WhiteMs:   r.Clock.WhiteLeft.Milliseconds(),
		BlackMs:   r.Clock.BlackLeft.Milliseconds(),
		StartedAt: r.CreatedAt,
		EndedAt:   r.Finished.At,
	}
	if w := r.seatByColor(rules.White); w != nil {
		rec.WhiteID, rec.WhiteName = w.Identity, w.Name
	}
	if b := r.seatByColor(rules.Black); b != nil {
		rec.BlackID, rec.BlackName = b.Identity, b.Name
	}
	return rec
}
