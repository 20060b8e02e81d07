package training

import "context"

// =============================================================================
// 📡 Wire protocol
// =============================================================================
//
// Participants speak a fixed vocabulary of plain-text control tokens over a
// persistent duplex channel, interleaved with JSON payloads (the dataset
// feature spec and the training parameters). The exact token spelling is
// the wire contract.

const (
	MsgJoiningTraining        = "JoiningTraining"
	MsgSubscriptionFinished   = "SubscriptionFinished"
	MsgPerformPreprocessing   = "PerformPreprocessing"
	MsgPreprocessingFinished  = "PreprocessingFinished"
	MsgSendingParameters      = "SendingParameters"
	MsgSendMeParameters       = "SendMeParameters"
	MsgParametersReceived     = "ParametersReceived"
	MsgStartClient            = "StartClient"
	MsgUnfinished             = "Unfinished"
	MsgTrainingFinished       = "TrainingFinished"
	MsgNextRound              = "NextRound?"
	MsgEndConnection          = "EndConnection"
	MsgCloseConnection        = "CloseConnection"
)

// Conn is the duplex message channel a participant is connected through.
// The concrete transport is a websocket; the session logic only needs
// text frames, JSON frames and a close.
type Conn interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, msg string) error
	WriteJSON(ctx context.Context, v any) error
	Close(reason string) error
}

// TrainingParameters is the JSON payload pushed to a participant after it
// acknowledges SendingParameters. Field names are part of the wire
// contract with the client trainer.
type TrainingParameters struct {
	Strategy      string   `json:"strategy"`
	NameDataset   string   `json:"name_dataset"`
	ModelSelected string   `json:"model_selected"`
	ClientNumber  string   `json:"client_number"`
	ConnectionIP  string   `json:"connection_ip"`
	MetricName    []string `json:"metric_name"`
}
