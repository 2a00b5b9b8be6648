package orchestrator

import (
	"context"

	"github.com/loopforge/jsonguard/internal/streams"
	"github.com/loopforge/jsonguard/processor"
	"github.com/loopforge/jsonguard/tokenizer"
)

// Decoder is the external tensor-backend collaborator named in spec §1
// ("the tensor backend that actually runs the model") and bound by the
// "Decoder contract" of spec §6: for every generated step it must call
// proc.Process(logits) before sampling and proc.DidSample(ctx, id) after
// sampling is NOT its job here — DidSample is called by this module's
// supervisor as it consumes the token stream Decode returns (spec §5's
// strict Process/DidSample alternation is split across the two
// collaborators this way: Decode masks and samples, the supervisor
// advances state from the sampled id).
//
// proc is nil when params.ResponseFormat is ResponseFormatText: no
// constraint wiring applies and the decoder must sample unconstrained.
type Decoder interface {
	Decode(ctx context.Context, promptTokens []tokenizer.ID, params DecodeParams, proc *processor.Processor) (streams.Stream[tokenizer.ID], error)
}
