package chat

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// State 是会话生命周期状态，只会向前推进，Closed 为终态。
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosed
)

// Session 包装一条 websocket 连接：带缓冲的出站通道、写/心跳泵，
// 以及保证只执行一次的注销回调。会话在回放完成前缓存实时消息，
// 避免实时消息插到历史之前。
type Session struct {
	UserID uint
	Name   string

	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	once      sync.Once
	state     atomic.Int32
	activated atomic.Bool
	teardown  func()

	mu      sync.Mutex
	pending [][]byte
}

func NewSession(userID uint, name string, conn *websocket.Conn) *Session {
	s := &Session{
		UserID: userID,
		Name:   name,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) State() State { return State(s.state.Load()) }

// Activated 报告会话是否完成过历史回放。回放中途失败的会话从未对
// 房间宣告上线，注销时据此跳过下线广播。
func (s *Session) Activated() bool { return s.activated.Load() }

// SetTeardown 注册注销回调，必须在会话进入任何注册表之前调用。
func (s *Session) SetTeardown(fn func()) { s.teardown = fn }

// Start 启动写泵。没有底层连接时（测试场景）是空操作。
func (s *Session) Start() {
	if s.conn != nil {
		go s.writePump()
	}
}

// Send 投递一条实时消息。回放未完成时消息进入暂存队列；会话已关闭
// 或缓冲已满时返回 false，消息被跳过，移除由会话自身的断开路径完成。
func (s *Session) Send(p []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateConnecting {
		s.pending = append(s.pending, p)
		return true
	}
	return s.push(p)
}

// SendJSON 序列化 v 后调用 Send。
func (s *Session) SendJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return s.Send(b)
}

// Notice 把一条人类可读的错误提示回写给本会话。
func (s *Session) Notice(text string) {
	s.Send([]byte(text))
}

func (s *Session) push(p []byte) bool {
	select {
	case s.send <- p:
		return true
	case <-s.closed:
		return false
	default:
		// 慢客户端塞满缓冲：异步关闭，交给它自己的断开路径注销。
		go s.Close(websocket.CloseGoingAway, "send buffer full")
		return false
	}
}

// Replay 在回放阶段写出一条历史消息，阻塞直到入队或会话关闭。
// 返回 false 表示会话已关闭，回放应当放弃。
func (s *Session) Replay(p []byte) bool {
	select {
	case s.send <- p:
		return true
	case <-s.closed:
		return false
	}
}

// ReplayJSON 序列化 v 后调用 Replay。
func (s *Session) ReplayJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return s.Replay(b)
}

// EndReplay 结束回放：冲掉暂存的实时消息并进入 Active 状态。
// 暂存冲洗与状态翻转在同一临界区内完成，保证没有后来的实时消息
// 插到暂存消息之前。
func (s *Session) EndReplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateConnecting {
		return
	}
	s.state.Store(int32(StateActive))
	s.activated.Store(true)
	for _, p := range s.pending {
		if !s.push(p) {
			break
		}
	}
	s.pending = nil
}

// Close 幂等地终结会话：执行注销回调、关闭底层连接。空 reason 时
// 不回显任何描述性负载。
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		s.state.Store(int32(StateClosed))
		close(s.closed)
		if s.teardown != nil {
			s.teardown()
		}
		if s.conn != nil {
			deadline := time.Now().Add(writeWait)
			_ = s.conn.SetWriteDeadline(deadline)
			_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
			_ = s.conn.Close()
		}
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close(websocket.CloseAbnormalClosure, "")
	}()
	for {
		select {
		case <-s.closed:
			return
		case p := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
