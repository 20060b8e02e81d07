/*
Package training orchestrates federated training sessions over websocket
connections.

A Session is created for each accepted configuration. Participants first
register their local dataset through a short verification handshake, then
join the session proper: the session drives each client through
preprocessing, parameter exchange and per-round training, synchronizing
all live participants at a rendezvous barrier before every aggregation
round. The first participant released from the barrier launches the
aggregation worker for that round; hyperparameter trials are drawn from a
random-search Tuner across the configured search budget.

The Manager owns the set of active sessions, creates them when the
governance layer accepts a configuration, and serves the websocket
endpoints for joining and dataset registration.
*/
package training
