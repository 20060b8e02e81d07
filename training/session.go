package training

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fedgovio/fedgov/internal/metrics"
	"github.com/fedgovio/fedgov/types"
)

// =============================================================================
// 🔄 Training session
// =============================================================================

// Session orchestrates one accepted configuration's training run. It
// holds the roster of eligible participants, their registered dataset
// hashes, the live connection set and the rendezvous all participants
// must reach before a round starts. Sessions are in-memory only; a
// process restart loses in-flight rounds.
type Session struct {
	spec     SessionSpec
	launcher Launcher
	tuner    *Tuner
	logger   *zap.Logger
	metrics  *metrics.Collector

	terminate func()
	once      sync.Once

	mu             sync.Mutex
	conns          map[uuid.UUID]Conn
	hashes         map[uuid.UUID]string
	barrier        *Rendezvous
	processRunning bool
	lastRound      bool
	roundsRun      int
	roundStarted   time.Time
	handle         Handle
}

// NewSession creates a session for the given run.
func NewSession(spec SessionSpec, launcher Launcher, logger *zap.Logger) *Session {
	return &Session{
		spec:     spec,
		launcher: launcher,
		tuner:    NewTuner(spec.Space, time.Now().UnixNano()),
		logger: logger.With(
			zap.String("component", "training_session"),
			zap.String("configuration", spec.ConfigurationID.String())),
		conns:     make(map[uuid.UUID]Conn),
		hashes:    make(map[uuid.UUID]string),
		barrier:   NewRendezvous(0),
		terminate: func() {},
	}
}

// WithMetrics attaches a metrics collector.
func (s *Session) WithMetrics(m *metrics.Collector) *Session {
	s.metrics = m
	return s
}

// OnTerminate registers the callback run once when the final round
// completes. The registry uses it to evict the session.
func (s *Session) OnTerminate(fn func()) *Session {
	s.terminate = fn
	return s
}

// Spec returns the resolved run description.
func (s *Session) Spec() SessionSpec {
	return s.spec
}

// RoundsRun returns the number of completed rendezvous rounds.
func (s *Session) RoundsRun() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundsRun
}

// LiveParticipants returns the current number of connected participants.
func (s *Session) LiveParticipants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// =============================================================================
// 📋 Dataset registration
// =============================================================================

// RegisterDatasetHash records the content hash of a participant's
// validated local dataset.
func (s *Session) RegisterDatasetHash(member uuid.UUID, hash string) error {
	if !s.spec.HasMember(member) {
		return types.ForbiddenError(types.ErrMemberNotInGroup,
			"member %s may not participate in this training run", member)
	}
	s.mu.Lock()
	s.hashes[member] = hash
	s.mu.Unlock()
	s.logger.Info("dataset registered", zap.String("member", member.String()))
	return nil
}

// DatasetHash returns the hash a participant registered, if any.
func (s *Session) DatasetHash(member uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.hashes[member]
	return hash, ok
}

// RegisterDataset runs the dataset-registration sub-protocol on its own
// channel: push the feature expectation spec, read the client's boolean
// validation verdict, and on success read and store the content hash.
func (s *Session) RegisterDataset(ctx context.Context, member uuid.UUID, conn Conn) error {
	defer conn.Close("dataset registration finished")

	if !s.spec.HasMember(member) {
		return types.ForbiddenError(types.ErrMemberNotInGroup,
			"member %s may not participate in this training run", member)
	}
	if err := conn.WriteJSON(ctx, s.spec.Features); err != nil {
		return err
	}
	verdict, err := conn.ReadText(ctx)
	if err != nil {
		return err
	}
	valid, err := strconv.ParseBool(verdict)
	if err != nil {
		return types.ValidationError(types.ErrInvalidRequest,
			"expected a boolean validation verdict, got %q", verdict)
	}
	if !valid {
		s.logger.Warn("dataset validation failed", zap.String("member", member.String()))
		return nil
	}
	hash, err := conn.ReadText(ctx)
	if err != nil {
		return err
	}
	return s.RegisterDatasetHash(member, hash)
}

// =============================================================================
// 🤝 Handshake
// =============================================================================

// Serve drives one participant through the training handshake until the
// final round, a protocol error, or disconnection. Disconnection shrinks
// the rendezvous so the remaining participants are never stuck waiting.
func (s *Session) Serve(ctx context.Context, member uuid.UUID, conn Conn) error {
	hash, ok := s.DatasetHash(member)
	if !ok {
		conn.Close("no registered dataset for this training session")
		return types.NotFoundError(types.ErrDatasetNotFound,
			"member %s joined without a registered dataset", member)
	}
	if err := s.join(member, conn); err != nil {
		conn.Close(err.Error())
		return err
	}
	defer s.leave(member)

	if err := conn.WriteText(ctx, MsgJoiningTraining); err != nil {
		return err
	}
	if err := conn.WriteText(ctx, hash); err != nil {
		return err
	}

	for {
		msg, err := conn.ReadText(ctx)
		if err != nil {
			return err
		}

		switch msg {
		case MsgSubscriptionFinished:
			if err := conn.WriteText(ctx, MsgPerformPreprocessing); err != nil {
				return err
			}
			if err := conn.WriteJSON(ctx, s.spec.Features); err != nil {
				return err
			}

		case MsgPreprocessingFinished:
			if err := conn.WriteText(ctx, MsgSendingParameters); err != nil {
				return err
			}
			// The client acknowledges with SendMeParameters.
			if _, err := conn.ReadText(ctx); err != nil {
				return err
			}
			if err := conn.WriteJSON(ctx, s.spec.Parameters(hash)); err != nil {
				return err
			}

		case MsgParametersReceived, MsgNextRound:
			last, err := s.AwaitAggregator(ctx)
			if err != nil {
				return err
			}
			if err := conn.WriteText(ctx, MsgStartClient); err != nil {
				return err
			}
			status := MsgUnfinished
			for status == MsgUnfinished {
				status, err = conn.ReadText(ctx)
				if err != nil {
					return err
				}
			}
			s.ClaimTrainingFinished()

			if last {
				if err := conn.WriteText(ctx, MsgEndConnection); err != nil {
					return err
				}
				// Final CloseConnection acknowledgment.
				if _, err := conn.ReadText(ctx); err != nil {
					return err
				}
				s.once.Do(s.terminate)
				conn.Close("training run complete")
				return nil
			}

		default:
			s.logger.Warn("unexpected client message",
				zap.String("member", member.String()), zap.String("message", msg))
		}
	}
}

func (s *Session) join(member uuid.UUID, conn Conn) error {
	if !s.spec.HasMember(member) {
		return types.ForbiddenError(types.ErrMemberNotInGroup,
			"member %s may not participate in this training run", member)
	}
	s.mu.Lock()
	s.conns[member] = conn
	live := len(s.conns)
	s.barrier.Resize(live)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetLiveParticipants(s.spec.ConfigurationID.String(), live)
	}
	s.logger.Info("participant joined",
		zap.String("member", member.String()), zap.Int("live", live))
	return nil
}

func (s *Session) leave(member uuid.UUID) {
	s.mu.Lock()
	delete(s.conns, member)
	live := len(s.conns)
	s.barrier.Resize(live)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetLiveParticipants(s.spec.ConfigurationID.String(), live)
	}
	s.logger.Info("participant left",
		zap.String("member", member.String()), zap.Int("live", live))
}

// =============================================================================
// 🚦 Rendezvous and worker launch
// =============================================================================

// AwaitAggregator blocks until every live participant has reached the
// round boundary, then exactly one caller launches the aggregation
// worker and advances the round counter. All callers learn whether the
// round just started is the final one.
func (s *Session) AwaitAggregator(ctx context.Context) (last bool, err error) {
	waitStart := time.Now()
	if err := s.barrier.Wait(ctx); err != nil {
		return false, err
	}
	if s.metrics != nil {
		s.metrics.RecordBarrierWait(s.spec.ConfigurationID.String(), time.Since(waitStart))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.processRunning {
		next := s.roundsRun + 1
		s.lastRound = next >= s.spec.SearchRounds

		trial := s.tuner.Suggest()
		if s.lastRound {
			trial = s.tuner.Best()
		}

		handle, launchErr := s.launcher.Launch(ctx, LaunchSpec{
			ConfigurationID: s.spec.ConfigurationID,
			Round:           next,
			LastRound:       s.lastRound,
			Trial:           trial,
			Parameters:      s.spec.Parameters(s.spec.DatasetName),
			ClientCount:     len(s.conns),
			Rounds:          s.spec.Rounds,
			InputSize:       s.spec.InputSize,
			OutputSize:      s.spec.OutputSize,
			ComputeShapley:  s.lastRound && s.spec.ComputeShapley,
		})
		if launchErr != nil {
			if s.metrics != nil {
				s.metrics.RecordWorkerLaunch(s.spec.ConfigurationID.String(), "error")
			}
			return false, launchErr
		}
		s.handle = handle
		s.processRunning = true
		s.roundsRun = next
		s.roundStarted = time.Now()

		if s.metrics != nil {
			s.metrics.RecordWorkerLaunch(s.spec.ConfigurationID.String(), "ok")
		}
		s.logger.Info("round started",
			zap.Int("round", next), zap.Bool("last_round", s.lastRound))
	}
	return s.lastRound, nil
}

// ClaimTrainingFinished marks the running round's worker as done so the
// next rendezvous may launch a new one.
func (s *Session) ClaimTrainingFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.processRunning {
		return
	}
	s.processRunning = false
	if s.metrics != nil {
		s.metrics.RecordRound(s.spec.ConfigurationID.String(), time.Since(s.roundStarted))
	}
}

// Close disconnects every participant and stops a running worker.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	conns := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[uuid.UUID]Conn)
	handle := s.handle
	s.handle = nil
	s.processRunning = false
	s.barrier.Resize(0)
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(reason)
	}
	if handle != nil {
		if err := handle.Stop(); err != nil {
			s.logger.Warn("aggregation worker stop failed", zap.Error(err))
		}
	}
}
