package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/go/internal/draft/coordinator"
	"github.com/mcdev12/draftroom/go/internal/draft/events"
	"github.com/mcdev12/draftroom/go/internal/draft/room"
	"github.com/mcdev12/draftroom/go/internal/models"
)

const (
	// RoomAdminServiceName is the fully-qualified name of the admin service.
	RoomAdminServiceName = "draftroom.admin.v1.RoomAdminService"

	RoomAdminCreateRoomProcedure   = "/" + RoomAdminServiceName + "/CreateRoom"
	RoomAdminStartDraftProcedure   = "/" + RoomAdminServiceName + "/StartDraft"
	RoomAdminGetRoomStateProcedure = "/" + RoomAdminServiceName + "/GetRoomState"
	RoomAdminTogglePauseProcedure  = "/" + RoomAdminServiceName + "/TogglePause"
	RoomAdminListRoomsProcedure    = "/" + RoomAdminServiceName + "/ListRooms"
)

// jsonCodec lets connect carry plain Go structs. It replaces connect's protojson codec under the same name.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type CreateRoomRequest struct {
	LeagueID           string         `json:"leagueId"`
	DraftFormat        string         `json:"draftFormat"`
	TeamCount          int            `json:"teamCount"`
	TotalRounds        int            `json:"totalRounds"`
	TimePerPickSeconds int            `json:"timePerPickSeconds"`
	ScheduledAt        *time.Time     `json:"scheduledAt,omitempty"`
	ExpiryPolicy       string         `json:"expiryPolicy,omitempty"`
	PlayerPool         []string       `json:"playerPool,omitempty"`
	Participants       map[string]int `json:"participants,omitempty"`
}

type LeagueRequest struct {
	LeagueID string `json:"leagueId"`
}

type RoomResponse struct {
	Room events.DraftStatusPayload `json:"room"`
}

type TogglePauseResponse struct {
	Paused bool `json:"paused"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	LeagueIDs []string `json:"leagueIds"`
}

// AdminRooms is what the admin service needs from the coordinator.
type AdminRooms interface {
	CreateRoom(cfg coordinator.RoomConfig) (*coordinator.Room, error)
	StartDraft(ctx context.Context, leagueID string) error
	TogglePause(ctx context.Context, leagueID string) (bool, error)
	Snapshot(ctx context.Context, leagueID string) (models.Room, error)
	LeagueIDs() []string
}

// AdminService implements the room administration RPCs.
type AdminService struct {
	rooms AdminRooms
}

func NewAdminService(rooms AdminRooms) *AdminService {
	return &AdminService{rooms: rooms}
}

func (s *AdminService) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error) {
	m := req.Msg
	cfg := coordinator.RoomConfig{
		Settings: room.Settings{
			LeagueID:           m.LeagueID,
			DraftFormat:        models.DraftFormat(strings.ToUpper(m.DraftFormat)),
			TeamCount:          m.TeamCount,
			TotalRounds:        m.TotalRounds,
			TimePerPickSeconds: m.TimePerPickSeconds,
			ScheduledAt:        m.ScheduledAt,
		},
		ExpiryPolicy: coordinator.ExpiryPolicy(strings.ToUpper(m.ExpiryPolicy)),
		PlayerPool:   m.PlayerPool,
		Participants: m.Participants,
	}

	r, err := s.rooms.CreateRoom(cfg)
	if err != nil {
		if errors.Is(err, coordinator.ErrRoomExists) {
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		}
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	state, err := r.Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	log.Info().Str("league_id", m.LeagueID).Msg("room created via admin")
	return connect.NewResponse(&RoomResponse{Room: room.StatusPayload(state)}), nil
}

func (s *AdminService) StartDraft(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[RoomResponse], error) {
	if req.Msg.LeagueID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("league_id is required"))
	}
	if err := s.rooms.StartDraft(ctx, req.Msg.LeagueID); err != nil {
		return nil, toConnectError(err)
	}
	return s.roomResponse(ctx, req.Msg.LeagueID)
}

func (s *AdminService) GetRoomState(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[RoomResponse], error) {
	if req.Msg.LeagueID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("league_id is required"))
	}
	return s.roomResponse(ctx, req.Msg.LeagueID)
}

func (s *AdminService) TogglePause(ctx context.Context, req *connect.Request[LeagueRequest]) (*connect.Response[TogglePauseResponse], error) {
	if req.Msg.LeagueID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("league_id is required"))
	}
	paused, err := s.rooms.TogglePause(ctx, req.Msg.LeagueID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TogglePauseResponse{Paused: paused}), nil
}

func (s *AdminService) ListRooms(_ context.Context, _ *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	return connect.NewResponse(&ListRoomsResponse{LeagueIDs: s.rooms.LeagueIDs()}), nil
}

func (s *AdminService) roomResponse(ctx context.Context, leagueID string) (*connect.Response[RoomResponse], error) {
	state, err := s.rooms.Snapshot(ctx, leagueID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RoomResponse{Room: room.StatusPayload(state)}), nil
}

func toConnectError(err error) error {
	var rej *coordinator.RejectionError
	switch {
	case errors.As(err, &rej) && rej.Code == events.ReasonUnknownRoom:
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &rej) && rej.Code == events.ReasonInvalidCommand:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &rej):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, coordinator.ErrRoomClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// NewAdminHandler mounts svc under its service path.
func NewAdminHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(RoomAdminCreateRoomProcedure, connect.NewUnaryHandler(RoomAdminCreateRoomProcedure, svc.CreateRoom, opts...))
	mux.Handle(RoomAdminStartDraftProcedure, connect.NewUnaryHandler(RoomAdminStartDraftProcedure, svc.StartDraft, opts...))
	mux.Handle(RoomAdminGetRoomStateProcedure, connect.NewUnaryHandler(RoomAdminGetRoomStateProcedure, svc.GetRoomState, opts...))
	mux.Handle(RoomAdminTogglePauseProcedure, connect.NewUnaryHandler(RoomAdminTogglePauseProcedure, svc.TogglePause, opts...))
	mux.Handle(RoomAdminListRoomsProcedure, connect.NewUnaryHandler(RoomAdminListRoomsProcedure, svc.ListRooms, opts...))
	return "/" + RoomAdminServiceName + "/", mux
}

// AdminClient calls the admin service over connect's JSON protocol.
type AdminClient struct {
	createRoom   *connect.Client[CreateRoomRequest, RoomResponse]
	startDraft   *connect.Client[LeagueRequest, RoomResponse]
	getRoomState *connect.Client[LeagueRequest, RoomResponse]
	togglePause  *connect.Client[LeagueRequest, TogglePauseResponse]
	listRooms    *connect.Client[ListRoomsRequest, ListRoomsResponse]
}

func NewAdminClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &AdminClient{
		createRoom:   connect.NewClient[CreateRoomRequest, RoomResponse](httpClient, baseURL+RoomAdminCreateRoomProcedure, opts...),
		startDraft:   connect.NewClient[LeagueRequest, RoomResponse](httpClient, baseURL+RoomAdminStartDraftProcedure, opts...),
		getRoomState: connect.NewClient[LeagueRequest, RoomResponse](httpClient, baseURL+RoomAdminGetRoomStateProcedure, opts...),
		togglePause:  connect.NewClient[LeagueRequest, TogglePauseResponse](httpClient, baseURL+RoomAdminTogglePauseProcedure, opts...),
		listRooms:    connect.NewClient[ListRoomsRequest, ListRoomsResponse](httpClient, baseURL+RoomAdminListRoomsProcedure, opts...),
	}
}

func (c *AdminClient) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*RoomResponse, error) {
	res, err := c.createRoom.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *AdminClient) StartDraft(ctx context.Context, leagueID string) (*RoomResponse, error) {
	res, err := c.startDraft.CallUnary(ctx, connect.NewRequest(&LeagueRequest{LeagueID: leagueID}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *AdminClient) GetRoomState(ctx context.Context, leagueID string) (*RoomResponse, error) {
	res, err := c.getRoomState.CallUnary(ctx, connect.NewRequest(&LeagueRequest{LeagueID: leagueID}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func (c *AdminClient) TogglePause(ctx context.Context, leagueID string) (bool, error) {
	res, err := c.togglePause.CallUnary(ctx, connect.NewRequest(&LeagueRequest{LeagueID: leagueID}))
	if err != nil {
		return false, err
	}
	return res.Msg.Paused, nil
}

func (c *AdminClient) ListRooms(ctx context.Context) ([]string, error) {
	res, err := c.listRooms.CallUnary(ctx, connect.NewRequest(&ListRoomsRequest{}))
	if err != nil {
		return nil, err
	}
	return res.Msg.LeagueIDs, nil
}
