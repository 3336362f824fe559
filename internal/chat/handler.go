package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bhumika-maharjan/Chat-Application/internal/auth"
	"github.com/bhumika-maharjan/Chat-Application/internal/config"
	"github.com/bhumika-maharjan/Chat-Application/internal/metrics"
	"github.com/bhumika-maharjan/Chat-Application/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxFrameSize = 1 << 20 // 1MB

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 承载两个 WebSocket 端点：房间会话与私聊会话。连接流程：
// 鉴权 -> 授权 -> 注册 -> 回放历史 -> 接收循环 -> 幂等注销。
type Handler struct {
	db      *gorm.DB
	cfg     config.Config
	store   *Store
	rooms   *RoomRegistry
	direct  *DirectRegistry
	tracker *Tracker
	files   storage.Store
}

func NewHandler(db *gorm.DB, cfg config.Config, store *Store, rooms *RoomRegistry, direct *DirectRegistry, tracker *Tracker, files storage.Store) *Handler {
	return &Handler{db: db, cfg: cfg, store: store, rooms: rooms, direct: direct, tracker: tracker, files: files}
}

// closeSilently 以 1008 关闭通道且不携带描述负载，避免泄露房间是否
// 存在以及成员关系。
func closeSilently(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
	_ = conn.Close()
}

// ServeRoom 处理 GET /ws/room?room_id=&token=&room_key=。
func (h *Handler) ServeRoom(c *gin.Context) {
	roomID64, err := strconv.ParseUint(c.Query("room_id"), 10, 64)
	if err != nil || roomID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
		return
	}
	token := auth.BearerToken(c)
	credential := c.Query("room_key")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	user, err := auth.Identify(h.db, h.cfg, token)
	if err != nil {
		closeSilently(conn)
		return
	}

	roomID := uint(roomID64)
	conv := RoomConversation{RoomID: roomID}
	s := NewSession(user.ID, user.DisplayName(), conn)
	s.Start()
	s.SetTeardown(func() {
		// 会话从未注册成功时 Leave 返回 false。注册了但回放没走完的
		// 会话从未宣告上线，同样不宣告下线。
		if h.rooms.Leave(roomID, s) && s.Activated() {
			h.rooms.Broadcast(roomID, fmt.Sprintf("%s disconnected", s.Name))
		}
	})

	// 授权失败时会话从未注册，关闭不触发任何广播副作用。
	backlog, err := h.rooms.Join(conv, s, credential)
	if err != nil {
		if errors.Is(err, ErrNotAMember) || errors.Is(err, ErrAccessDenied) {
			s.Close(websocket.ClosePolicyViolation, "")
			return
		}
		log.Error().Err(err).Uint("room_id", roomID).Msg("room join")
		s.Close(websocket.CloseInternalServerErr, "")
		return
	}

	names, err := h.store.DisplayNames(backlog)
	if err != nil {
		log.Error().Err(err).Uint("room_id", roomID).Msg("room replay")
		s.Close(websocket.CloseInternalServerErr, "")
		return
	}
	for i := range backlog {
		if !s.Replay([]byte(FormatLine(&backlog[i], names[backlog[i].SenderID]))) {
			// 会话在回放途中关闭，剩余回放直接放弃。
			return
		}
	}
	s.EndReplay()

	h.rooms.Broadcast(roomID, fmt.Sprintf("%s connected", s.Name))
	h.roomReadLoop(s, conv)
}

// roomReadLoop 逐帧处理入站消息。解析失败只回告错误提示，会话继续；
// 传输层错误才是致命的。
func (h *Handler) roomReadLoop(s *Session, conv RoomConversation) {
	defer s.Close(websocket.CloseNormalClosure, "")
	s.conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.Notice("invalid frame")
			continue
		}
		switch in.Type {
		case FrameText:
			if strings.TrimSpace(in.Text) == "" {
				s.Notice("empty message")
				continue
			}
			content := in.Text
			err := h.rooms.Dispatch(conv.RoomID, func() (string, error) {
				m, err := h.store.Append(conv, s.UserID, &content, nil, nil)
				if err != nil {
					return "", err
				}
				metrics.RoomMessagesTotal.Inc()
				return FormatLine(m, s.Name), nil
			})
			if err != nil {
				log.Error().Err(err).Uint("room_id", conv.RoomID).Msg("room append")
				s.Notice("message not saved")
			}
		case FrameFile:
			fileURL, fileType, caption, ok := h.saveFile(s, in)
			if !ok {
				continue
			}
			err := h.rooms.Dispatch(conv.RoomID, func() (string, error) {
				m, err := h.store.Append(conv, s.UserID, caption, fileURL, fileType)
				if err != nil {
					return "", err
				}
				metrics.RoomMessagesTotal.Inc()
				return FormatLine(m, s.Name), nil
			})
			if err != nil {
				log.Error().Err(err).Uint("room_id", conv.RoomID).Msg("room append file")
				s.Notice("message not saved")
			}
		default:
			s.Notice("unknown frame type")
		}
	}
}

// ServeDirect 处理 GET /ws/direct?peer_id=&token=。
func (h *Handler) ServeDirect(c *gin.Context) {
	peerID64, err := strconv.ParseUint(c.Query("peer_id"), 10, 64)
	if err != nil || peerID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer_id"})
		return
	}
	token := auth.BearerToken(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	user, err := auth.Identify(h.db, h.cfg, token)
	if err != nil {
		closeSilently(conn)
		return
	}

	conv := DirectConversation{UserID: user.ID, PeerID: uint(peerID64)}
	if err := conv.Authorize(h.db, user.ID, ""); err != nil {
		closeSilently(conn)
		return
	}

	s := NewSession(user.ID, user.DisplayName(), conn)
	s.Start()
	s.SetTeardown(func() {
		h.direct.Disconnect(conv.UserID, conv.PeerID, s)
	})

	// 在会话对锁内完成注册与历史快照：快照之后路由的消息全部进入
	// 暂存队列，回放完成后按序放出。
	pl := h.direct.PairLock(conv.UserID, conv.PeerID)
	pl.Lock()
	h.direct.Connect(conv.UserID, conv.PeerID, s)
	backlog, err := h.store.History(conv)
	pl.Unlock()
	if err != nil {
		log.Error().Err(err).Uint("peer_id", conv.PeerID).Msg("direct history")
		s.Close(websocket.CloseInternalServerErr, "")
		return
	}

	names, err := h.store.DisplayNames(backlog)
	if err != nil {
		log.Error().Err(err).Uint("peer_id", conv.PeerID).Msg("direct replay")
		s.Close(websocket.CloseInternalServerErr, "")
		return
	}
	for i := range backlog {
		if !s.ReplayJSON(NewHistoryEntry(&backlog[i], names[backlog[i].SenderID])) {
			return
		}
	}
	s.EndReplay()

	h.directReadLoop(s, conv)
}

func (h *Handler) directReadLoop(s *Session, conv DirectConversation) {
	defer s.Close(websocket.CloseNormalClosure, "")
	s.conn.SetReadLimit(maxFrameSize)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.Notice("invalid frame")
			continue
		}
		switch in.Type {
		case FrameText:
			if strings.TrimSpace(in.Text) == "" {
				s.Notice("empty message")
				continue
			}
			content := in.Text
			h.sendDirect(s, conv, &content, nil, nil)
		case FrameFile:
			fileURL, fileType, caption, ok := h.saveFile(s, in)
			if !ok {
				continue
			}
			h.sendDirect(s, conv, caption, fileURL, fileType)
		case FrameRead:
			if err := h.tracker.MarkRead(in.MessageID, s.UserID); err != nil {
				switch {
				case errors.Is(err, ErrNotAuthorized):
					s.Notice("read ack rejected")
				case errors.Is(err, ErrInvalidTransition):
					s.Notice("stale read ack")
				default:
					log.Error().Err(err).Uint("message_id", in.MessageID).Msg("read ack")
					s.Notice("read ack failed")
				}
			}
		default:
			s.Notice("unknown frame type")
		}
	}
}

// sendDirect 在会话对锁内持久化并派发一条私聊消息。对端离线只是
// RoutingMiss：消息保持 sent 状态，不向调用方报错。
func (h *Handler) sendDirect(s *Session, conv DirectConversation, content, fileURL, fileType *string) {
	pl := h.direct.PairLock(conv.UserID, conv.PeerID)
	pl.Lock()
	defer pl.Unlock()
	m, err := h.store.Append(conv, s.UserID, content, fileURL, fileType)
	if err != nil {
		log.Error().Err(err).Uint("peer_id", conv.PeerID).Msg("direct append")
		s.Notice("message not saved")
		return
	}
	if err := h.tracker.Dispatch(m); err != nil && !errors.Is(err, ErrInvalidTransition) {
		log.Error().Err(err).Uint("message_id", m.ID).Msg("direct dispatch")
	}
}

// saveFile 通过文件存储协作方落盘入站文件帧，返回可取回的引用。
func (h *Handler) saveFile(s *Session, in Inbound) (fileURL, fileType, caption *string, ok bool) {
	if in.Filename == "" || in.Data == "" {
		s.Notice("empty file payload")
		return nil, nil, nil, false
	}
	url, err := h.files.Save(in.Filename, in.Data)
	if err != nil {
		if errors.Is(err, storage.ErrBadPayload) {
			s.Notice("bad file payload")
		} else {
			log.Error().Err(err).Str("filename", in.Filename).Msg("save file")
			s.Notice("file not saved")
		}
		return nil, nil, nil, false
	}
	var mime *string
	if in.Mimetype != "" {
		mime = &in.Mimetype
	}
	if strings.TrimSpace(in.Text) != "" {
		text := in.Text
		caption = &text
	}
	return &url, mime, caption, true
}
