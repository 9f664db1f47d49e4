package action

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

type OptionsSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *OptionsSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestOptionsSuite(t *testing.T) {
	suite.Run(t, new(OptionsSuite))
}

func (s *OptionsSuite) TestOnMatchCalledForSelectedDescriptors() {
	var matched []Descriptor
	r := NewRegistry(
		WithReporter(NopReporter()),
		WithOnMatch(func(_ context.Context, d Descriptor, _ Event) {
			matched = append(matched, d)
		}),
	)
	s.Require().NoError(r.Message(MessageOptions{Text: "first"}))
	s.Require().NoError(r.Message(MessageOptions{Text: "second"}))
	s.Require().NoError(r.OnError(CallbackOptions{Do: func(context.Context, Event) error { return nil }}))

	_, _ = r.DispatchMessage(s.ctx, Event{Err: errors.New("x")})
	_ = r.RunCallbacks(s.ctx, Event{Err: errors.New("x")})

	s.Require().Len(matched, 2)
	s.Assert().IsType(&MessageDescriptor{}, matched[0])
	s.Assert().IsType(&CallbackDescriptor{}, matched[1])
}

func (s *OptionsSuite) TestMultipleHooksCalledInOrder() {
	var order []string
	r := NewRegistry(
		WithReporter(NopReporter()),
		WithOnCallbackError(func(context.Context, string, Event, error) { order = append(order, "one") }),
		WithOnCallbackError(func(context.Context, string, Event, error) { order = append(order, "two") }),
	)
	s.Require().NoError(r.OnError(CallbackOptions{Name: "bad", Do: func(context.Context, Event) error {
		return errors.New("failed")
	}}))

	_ = r.RunCallbacks(s.ctx, Event{Err: errors.New("x")})

	s.Assert().Equal([]string{"one", "two"}, order)
}

func (s *OptionsSuite) TestOnCallbackErrorReceivesName() {
	var gotName string
	var gotErr error
	r := NewRegistry(
		WithReporter(NopReporter()),
		WithOnCallbackError(func(_ context.Context, name string, _ Event, err error) {
			gotName, gotErr = name, err
		}),
	)
	failure := errors.New("queue full")
	s.Require().NoError(r.OnError(CallbackOptions{Name: "retry", Do: func(context.Context, Event) error {
		return failure
	}}))

	_ = r.RunCallbacks(s.ctx, Event{Err: errors.New("x")})

	s.Assert().Equal("retry", gotName)
	s.Assert().ErrorIs(gotErr, failure)
}

func (s *OptionsSuite) TestTypeRegistryResolvesNames() {
	types := NewTypeRegistry()
	types.Register("Transient", reflect.TypeOf((*temporary)(nil)).Elem())
	r := NewRegistry(WithReporter(NopReporter()), WithTypeRegistry(types))
	s.Require().NoError(r.Message(MessageOptions{From: []any{"Transient"}, Text: "try again later"}))

	msg, ok := r.DispatchMessage(s.ctx, Event{Err: TimeoutError{}})
	s.Assert().True(ok)
	s.Assert().Equal("try again later", msg)

	_, ok = r.DispatchMessage(s.ctx, Event{Err: &NotFoundError{}})
	s.Assert().False(ok)
}

func (s *OptionsSuite) TestRegistryConfig() {
	cfg := DefaultConfig()
	cfg.DefaultMessage = "Please retry"
	cfg.LogFaults = false
	r := NewRegistry(WithRegistryConfig(cfg))

	s.Assert().Equal("Please retry", r.MessageOrDefault(s.ctx, Event{Err: errors.New("x")}))
}

func (s *OptionsSuite) TestReporterMayPanic() {
	r := NewRegistry(WithReporter(ReporterFunc(func(context.Context, string, error) {
		panic("reporter broke")
	})))
	s.Require().NoError(r.OnError(CallbackOptions{Do: func(context.Context, Event) error {
		return errors.New("failed")
	}}))

	s.Assert().NotPanics(func() {
		_ = r.RunCallbacks(s.ctx, Event{Err: errors.New("x")})
	})
}

func (s *OptionsSuite) TestPanickingHooksAreContained() {
	rep := &recordingReporter{}
	var ran []string
	r := NewRegistry(
		WithReporter(rep),
		WithOnMatch(func(context.Context, Descriptor, Event) { panic("metrics client nil") }),
		WithOnCallbackError(func(context.Context, string, Event, error) { panic("alerting down") }),
		WithOnCallbackError(func(_ context.Context, name string, _ Event, _ error) {
			ran = append(ran, "hook:"+name)
		}),
	)
	s.Require().NoError(r.Message(MessageOptions{Text: "try again"}))
	s.Require().NoError(r.OnError(CallbackOptions{Name: "first", Do: func(context.Context, Event) error {
		ran = append(ran, "first")
		return errors.New("failed")
	}}))
	s.Require().NoError(r.OnError(CallbackOptions{Name: "second", Do: func(context.Context, Event) error {
		ran = append(ran, "second")
		return nil
	}}))

	var (
		msg string
		ok  bool
		err error
	)
	s.Require().NotPanics(func() {
		msg, ok = r.DispatchMessage(s.ctx, Event{Err: errors.New("x")})
		err = r.RunCallbacks(s.ctx, Event{Err: errors.New("x")})
	})

	s.Assert().True(ok)
	s.Assert().Equal("try again", msg)
	s.Assert().Equal([]string{"first", "hook:first", "second"}, ran)
	s.Assert().ErrorContains(err, "failed")
	// Three OnMatch panics, one OnCallbackError panic, one callback fault.
	s.Assert().Equal(5, rep.count())
}
