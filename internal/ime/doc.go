// Package ime defines the contract between the keyboard host and pluggable
// input method engines.
//
// # Engines
//
// An engine provides prediction and composition logic for a language or an
// input mode. Every engine implements Engine (Init and Click). Everything
// else is an optional capability expressed as a separate interface:
//
//	Activator                    Activate(ctx, lang, data, opts)
//	Deactivator                  Deactivate()
//	Selector                     Select(ctx, word, data)
//	LayoutParamsSetter           SetLayoutParams(params)
//	CandidateSource              GetMoreCandidates(ctx, indicator, max, cb)
//	SelectionChangeHandler       SelectionChange(ctx, detail)
//	SurroundingTextChangeHandler SurroundingTextChange(ctx, detail)
//	StrokeReceiver               SendStrokePoints(ctx, points)
//	CandidateDisplayer           DisplaysCandidates()
//
// The set an engine supports is probed once, when the engine is initialized,
// and stored on its Instance. The host consults the Instance accessors and
// never calls a capability outside that set.
//
// # Glue
//
// Init receives a Glue, the engine's only channel back to the host. A Glue is
// bound to exactly one engine id for the life of the process.
//
// # Lifecycle
//
//	Registry.Register -> Loader.InitInputMethod -> Instance (process lifetime)
//	Manager.SwitchCurrentIMEngine -> Activate ... Deactivate
//
// Engine modules register themselves in a Registry. The loader takes them out
// of the registry, initializes them and keeps them for the rest of the
// process. The registry always holds the "default" engine, which forwards
// every key to the session unchanged.
package ime
