package roomhandler

type RoomURI struct {
	RoomID int64 `uri:"roomId" binding:"required,gt=0"`
} // @name RoomURI

type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1"`
} // @name HistoryQuery

type HistoryResponse struct {
	RoomID int64    `json:"roomId" example:"7"`
	Shapes []string `json:"shapes"`
} // @name HistoryResponse

type RoomsResponse struct {
	UserID string  `json:"userId" example:"user123"`
	Rooms  []int64 `json:"rooms"`
} // @name RoomsResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
