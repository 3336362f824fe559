package chat

import (
	"encoding/json"

	"github.com/bhumika-maharjan/Chat-Application/internal/metrics"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"github.com/rs/zerolog/log"
)

var statusRank = map[string]int{
	models.StatusSent:      0,
	models.StatusDelivered: 1,
	models.StatusRead:      2,
}

// Tracker 推进私聊消息的投递状态机 sent -> delivered -> read。
// 状态只向前走；每次成功迁移都会把 status_update 推给双方当前在线
// 的会话，离线方不会收到补发。
type Tracker struct {
	store  *Store
	direct *DirectRegistry
}

func NewTracker(store *Store, direct *DirectRegistry) *Tracker {
	return &Tracker{store: store, direct: direct}
}

// Dispatch 发出一条刚持久化的消息：先以当前状态（sent）通知双方，
// 负载真正到达在线接收方后立刻推进到 delivered。接收方离线时消息
// 保持 sent，没有后台重试。
func (t *Tracker) Dispatch(m *models.Message) error {
	if m.ReceiverID == nil {
		return ErrInvalidTransition
	}
	metrics.DirectMessagesTotal.Inc()
	if t.notify(m) > 0 {
		return t.advance(m, models.StatusDelivered)
	}
	return nil
}

// MarkRead 处理已读确认：只接受消息接收方本人的确认。
func (t *Tracker) MarkRead(messageID, readerID uint) error {
	m, err := t.store.Get(messageID)
	if err != nil {
		return err
	}
	if m.ReceiverID == nil || *m.ReceiverID != readerID {
		return ErrNotAuthorized
	}
	return t.advance(m, models.StatusRead)
}

// advance 执行一次状态迁移。向后或原地迁移被拒绝；存储层的写入是
// 比较并置换，手里的副本过期（例如已读确认抢在派发前落库）时迁移
// 同样被拒绝，已推进的状态不会回退。
func (t *Tracker) advance(m *models.Message, next string) error {
	cur, ok := statusRank[m.Status]
	nxt, ok2 := statusRank[next]
	if !ok || !ok2 || nxt <= cur {
		return ErrInvalidTransition
	}
	swapped, err := t.store.SetStatus(m.ID, m.Status, next)
	if err != nil {
		return err
	}
	if !swapped {
		return ErrInvalidTransition
	}
	m.Status = next
	metrics.StatusUpdatesTotal.WithLabelValues(next).Inc()
	t.notify(m)
	return nil
}

// notify 把当前状态推给双方在线会话，返回送达接收方的会话数。
func (t *Tracker) notify(m *models.Message) int {
	name, err := t.store.SenderName(m.SenderID)
	if err != nil {
		log.Warn().Err(err).Uint("sender_id", m.SenderID).Msg("resolve sender name")
	}
	payload, err := json.Marshal(NewStatusUpdate(m, name))
	if err != nil {
		return 0
	}
	return t.direct.Route(m.SenderID, *m.ReceiverID, payload)
}
