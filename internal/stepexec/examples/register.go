package examples

import "github.com/yungbote/sagacore/internal/stepexec"

// Register wires every demo Step into reg under its canonical name. Used
// by cmd/main's App wiring and by orchestrator/batch tests that need a
// populated Registry without hand-rolling one.
func Register(reg *stepexec.Registry) error {
	if err := reg.Register(EchoStepName, func() stepexec.Step { return NewEchoStep() }); err != nil {
		return err
	}
	if err := reg.Register(FlakyStepName, func() stepexec.Step { return NewFlakyStep(3) }); err != nil {
		return err
	}
	if err := reg.Register(AlwaysFailStepName, func() stepexec.Step { return NewAlwaysFailStep("") }); err != nil {
		return err
	}
	if err := reg.Register(ChunkedCountStepName, func() stepexec.Step { return NewChunkedCountStep(5, 10) }); err != nil {
		return err
	}
	return nil
}
