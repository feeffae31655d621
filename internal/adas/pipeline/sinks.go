package pipeline

// MultiEventSink fans one event stream out to several sinks. The pipeline
// calls sinks inline on the frame path, so each member must itself be
// non-blocking.
type MultiEventSink []EventSink

func (m MultiEventSink) RecordEvent(ev Event) {
	for _, s := range m {
		if s != nil {
			s.RecordEvent(ev)
		}
	}
}

// MultiDecisionSink fans the sampled decision stream out to several sinks
// under the same non-blocking contract.
type MultiDecisionSink []DecisionSink

func (m MultiDecisionSink) RecordDecision(d *FrameDecision) {
	for _, s := range m {
		if s != nil {
			s.RecordDecision(d)
		}
	}
}
