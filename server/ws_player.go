package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"melodify/core/apperr"
	"melodify/core/player"
	"melodify/core/presence"
	"melodify/core/search"
	"melodify/logger"
	"melodify/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 播放器客户端发送的指令
const (
	cmdPlay     presence.MessageType = "play"
	cmdNext     presence.MessageType = "next"
	cmdPrevious presence.MessageType = "previous"
	cmdToggle   presence.MessageType = "toggle"
	cmdSeek     presence.MessageType = "seek"
	cmdRemove   presence.MessageType = "remove"
	cmdReorder  presence.MessageType = "reorder"
	cmdClear    presence.MessageType = "clear"
	cmdJump     presence.MessageType = "jump"
	cmdShuffle  presence.MessageType = "shuffle"
	cmdLoop     presence.MessageType = "loop"
	cmdVolume   presence.MessageType = "volume"
	cmdMute     presence.MessageType = "mute"
	cmdQueue    presence.MessageType = "queue"
	cmdSearch   presence.MessageType = "search"
)

const settingsTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// playerCommand 指令参数，按类型取用其中的字段
type playerCommand struct {
	SongIDs []int64 `json:"songIds"`
	Index   int     `json:"index"`
	From    int     `json:"from"`
	To      int     `json:"to"`
	Seconds float64 `json:"seconds"`
	Volume  int     `json:"volume"`
	Query   string  `json:"query"`
}

// stateMessage 每条指令执行后推送给客户端的完整状态
type stateMessage struct {
	player.Snapshot
	Settings model.PlayerSettings `json:"settings"`
}

type searchResults struct {
	Query string        `json:"query"`
	Songs []*model.Song `json:"songs"`
}

// wsNotifier 把设置变更的提示推送为 toast / error 消息
type wsNotifier struct {
	client *presence.Client
}

func (n wsNotifier) Notify(message string) {
	_ = n.client.SendData(presence.MsgTypeToast, map[string]string{"message": message})
}

func (n wsNotifier) NotifyError(err error) {
	sendError(n.client, err)
}

func sendError(client *presence.Client, err error) {
	_ = client.SendData(presence.MsgTypeError, map[string]string{"message": apperr.PublicMessage(err)})
}

// playerConn 单个连接的播放会话。session 只在 run goroutine 中访问，
// 其他 goroutine 通过 actions 投递闭包。
type playerConn struct {
	h        *APIHandler
	ctx      context.Context
	client   *presence.Client
	session  *player.Session
	settings *player.SettingsSync
	search   *search.Session
	actions  chan func()
}

// PlayerWebSocketHandler GET /api/ws/player
func (h *APIHandler) PlayerWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized - you must be logged in")
		return
	}
	userID := claims.Subject

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[WS] Failed to upgrade WebSocket",
			logger.String("userId", userID),
			logger.ErrorField(err))
		return
	}

	connID := uuid.NewString()
	client := presence.NewClient(h.hub, conn, userID, connID)
	h.hub.Register(client)
	go client.WritePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pc := h.newPlayerConn(ctx, client)
	startCtx, startCancel := context.WithTimeout(ctx, settingsTimeout)
	if err := pc.settings.Start(startCtx); err != nil {
		logger.Warn("[WS] Failed to load player settings", logger.String("userId", userID), logger.ErrorField(err))
		sendError(client, err)
	}
	startCancel()
	_ = client.SendData(presence.MsgTypeActivities, h.hub.Activities())

	done := make(chan struct{})
	go func() {
		defer close(done)
		pc.run()
	}()

	logger.Info("[WS] Player connected", logger.String("userId", userID), logger.String("connId", connID))
	client.ReadPump(ctx, pc.handle)

	cancel()
	<-done
	pc.search.Clear()
	pc.session.Wait()
	logger.Info("[WS] Player disconnected", logger.String("userId", userID), logger.String("connId", connID))
}

func (h *APIHandler) newPlayerConn(ctx context.Context, client *presence.Client) *playerConn {
	userID := client.UserID
	// 断开连接时仍在进行的历史写入需要完成
	session := player.NewSession(userID,
		player.WithHistory(h.history),
		player.WithContext(context.WithoutCancel(ctx)))

	session.OnActivity(func(a player.Activity) {
		h.hub.UpdateActivity(a.UserID, a.Message)
	})
	session.OnError(func(err error) {
		logger.Error("[Recent] Failed to record play", logger.String("userId", userID), logger.ErrorField(err))
		sendError(client, err)
	})

	return &playerConn{
		h:        h,
		ctx:      ctx,
		client:   client,
		session:  session,
		settings: player.NewSettingsSync(h.settings.ForUser(userID), session, wsNotifier{client: client}),
		search:   search.NewSession(h.search),
		actions:  make(chan func(), 16),
	}
}

// run 执行投递的闭包，每次执行后推送状态
func (pc *playerConn) run() {
	pc.sendState()
	for {
		select {
		case fn := <-pc.actions:
			fn()
			pc.sendState()
		case <-pc.ctx.Done():
			return
		}
	}
}

func (pc *playerConn) do(fn func()) {
	select {
	case pc.actions <- fn:
	case <-pc.ctx.Done():
	}
}

// async 在后台完成设置的网络请求，结果交回会话 goroutine
func (pc *playerConn) async(call func(ctx context.Context) player.Commit) {
	go func() {
		ctx, cancel := context.WithTimeout(pc.ctx, settingsTimeout)
		defer cancel()
		pc.do(call(ctx))
	}()
}

func (pc *playerConn) sendState() {
	_ = pc.client.SendData(presence.MsgTypeState, stateMessage{
		Snapshot: pc.session.Snapshot(),
		Settings: pc.settings.Settings(),
	})
}

// handle 在读 goroutine 中调用
func (pc *playerConn) handle(ctx context.Context, client *presence.Client, msg *presence.Message) {
	var cmd playerCommand
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			logger.Warn("[WS] invalid command payload",
				logger.String("type", string(msg.Type)),
				logger.ErrorField(err))
			sendError(client, apperr.Validation("Invalid message payload"))
			return
		}
	}

	s := pc.session
	switch msg.Type {
	case cmdPlay:
		songs, err := pc.h.songRepo.ListByIDs(ctx, cmd.SongIDs)
		if err != nil {
			logger.Error("[WS] Failed to resolve queue", logger.ErrorField(err))
			sendError(client, apperr.Upstream("resolve queue", err))
			return
		}
		// 队列中有已删除的歌曲时索引会错位，整条指令拒绝
		if len(songs) != len(cmd.SongIDs) {
			logger.Warn("[WS] queue references missing songs",
				logger.Int("requested", len(cmd.SongIDs)),
				logger.Int("found", len(songs)))
			sendError(client, apperr.NotFound("Song not found"))
			return
		}
		pc.do(func() {
			if _, err := s.PlayFrom(songs, cmd.Index); err != nil {
				sendError(client, indexError(err))
			}
		})
	case cmdNext:
		pc.do(func() { s.Next() })
	case cmdPrevious:
		pc.do(func() { s.Previous() })
	case cmdToggle:
		pc.do(func() { s.TogglePlayPause() })
	case cmdSeek:
		pc.do(func() { s.SetElapsed(cmd.Seconds) })
	case cmdRemove:
		pc.do(func() { s.RemoveAt(cmd.Index) })
	case cmdReorder:
		pc.do(func() { s.Reorder(cmd.From, cmd.To) })
	case cmdClear:
		pc.do(func() { s.Clear() })
	case cmdJump:
		pc.do(func() {
			if _, err := s.JumpTo(cmd.Index); err != nil {
				sendError(client, indexError(err))
			}
		})
	case cmdShuffle:
		pc.async(pc.settings.ToggleShuffle)
	case cmdLoop:
		pc.async(pc.settings.CycleLoop)
	case cmdQueue:
		pc.async(pc.settings.ToggleQueue)
	case cmdVolume:
		volume := cmd.Volume
		pc.async(func(ctx context.Context) player.Commit {
			return pc.settings.SetVolume(ctx, volume)
		})
	case cmdMute:
		pc.do(func() {
			st := s.State()
			pc.async(func(ctx context.Context) player.Commit {
				return pc.settings.ToggleMute(ctx, st)
			})
		})
	case cmdSearch:
		go pc.runSearch(cmd.Query)
	default:
		logger.Debug("[WS] unknown message type", logger.String("type", string(msg.Type)))
	}
}

func (pc *playerConn) runSearch(query string) {
	err := pc.search.Deliver(pc.ctx, query, func(songs []*model.Song) {
		_ = pc.client.SendData(presence.MsgTypeSearchResults, searchResults{Query: query, Songs: songs})
	})
	if err == nil || errors.Is(err, apperr.ErrCancelled) {
		return
	}
	logger.Error("[Search] Query failed", logger.String("query", query), logger.ErrorField(err))
	sendError(pc.client, apperr.Upstream("search songs", err))
}

func indexError(err error) error {
	if errors.Is(err, player.ErrIndexOutOfRange) {
		return apperr.Validation("Invalid queue index")
	}
	return err
}
