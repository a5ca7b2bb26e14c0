package optionvalidator

import (
	"github.com/aristath/epochscript/internal/compiler/context"
	"github.com/aristath/epochscript/internal/domain"
)

// ApplySpecialParameters resolves the two parameters every transform call
// implicitly accepts regardless of whether its metadata declares them,
// timeframe and session (spec §4.6). A node that sets neither inherits both
// from the most recently explicit node earlier in program order: scripts
// set a working timeframe/session once and most subsequent calls ride along
// with it, only overriding where they diverge.
func ApplySpecialParameters(ctx *context.CompilationContext) error {
	var currentTimeframe domain.Timeframe
	var currentSession string
	for _, node := range ctx.Program.Nodes {
		if tf, ok := node.Options["timeframe"]; ok && tf.Kind == domain.OptionString {
			node.Timeframe = domain.Timeframe(tf.Str)
			currentTimeframe = node.Timeframe
		} else if node.Timeframe == "" {
			node.Timeframe = currentTimeframe
		}

		if sess, ok := node.Options["session"]; ok && sess.Kind == domain.OptionString {
			node.Session = sess.Str
			currentSession = node.Session
		} else if node.Session == "" {
			node.Session = currentSession
		}
	}
	return nil
}
