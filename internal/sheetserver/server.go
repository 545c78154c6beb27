package sheetserver

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/dice"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/formula"
	"github.com/cory-johannsen/d20sheet/internal/storage/postgres"
)

// Updater runs persisted passes. *engine.Service satisfies it.
type Updater interface {
	Update(ctx context.Context, id string) (*engine.Result, error)
	UpdateAll(ctx context.Context, ids []string) (map[string]*engine.Result, error)
}

// Importer stores character documents.
type Importer interface {
	Put(ctx context.Context, c *character.Character) error
}

// DependentLister finds documents whose master is id.
type DependentLister interface {
	ListDependents(ctx context.Context, id string) ([]string, error)
}

// Invalidator drops cached sheets of a character.
type Invalidator interface {
	Invalidate(ctx context.Context, characterID string) error
}

// Server implements SheetServiceServer.
type Server struct {
	UnimplementedSheetServiceServer

	updater     Updater
	eval        *formula.Evaluator
	logger      *zap.Logger
	importer    Importer
	dependents  DependentLister
	invalidator Invalidator
	roller      *dice.Roller
}

// Option configures a Server.
type Option func(*Server)

// WithImporter enables Import.
func WithImporter(i Importer) Option { return func(s *Server) { s.importer = i } }

// WithDependents enables {"cascade": true} on Recompute.
func WithDependents(d DependentLister) Option { return func(s *Server) { s.dependents = d } }

// WithInvalidator drops cached sheets when a document is imported.
func WithInvalidator(i Invalidator) Option { return func(s *Server) { s.invalidator = i } }

// WithRoller replaces the crypto-backed roller used by Roll.
func WithRoller(r *dice.Roller) Option { return func(s *Server) { s.roller = r } }

// NewServer creates a Server.
//
// Precondition: updater, eval and logger must be non-nil.
func NewServer(updater Updater, eval *formula.Evaluator, logger *zap.Logger, opts ...Option) *Server {
	if updater == nil || eval == nil || logger == nil {
		panic("sheetserver.NewServer: updater, evaluator and logger must be non-nil")
	}
	s := &Server{updater: updater, eval: eval, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.roller == nil {
		s.roller = dice.NewLoggedRoller(dice.NewCryptoSource(), logger.Named("dice"))
	}
	return s
}

// Recompute handles {"id": string, "cascade": bool, "details": bool}.
func (s *Server) Recompute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	res, err := s.updater.Update(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	out := resultMap(res, boolField(req, "details"))

	if boolField(req, "cascade") && s.dependents != nil {
		ids, err := s.dependents.ListDependents(ctx, id)
		if err != nil {
			return nil, toStatus(err)
		}
		if len(ids) > 0 {
			results, err := s.updater.UpdateAll(ctx, ids)
			if err != nil {
				s.logger.Warn("dependent recompute failed", zap.String("character", id), zap.Error(err))
				out["dependent_errors"] = err.Error()
			}
			deps := make(map[string]any, len(results))
			for depID, r := range results {
				deps[depID] = r.PassID.String()
			}
			out["dependents"] = deps
		}
	}
	return toStruct(out)
}

// Evaluate handles {"formula": string, "data": object, "seed": number}.
// Nested data keys become dotted paths; booleans evaluate as 1 or 0.
func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	src := stringField(req, "formula")
	if strings.TrimSpace(src) == "" {
		return nil, status.Error(codes.InvalidArgument, "formula is required")
	}
	values := formula.Values{}
	if data := req.GetFields()["data"].GetStructValue(); data != nil {
		flatten("", data, values)
	}
	var scope formula.Scope = values
	if seed, ok := req.GetFields()["seed"]; ok {
		scope = formula.WithSeed(values, uint64(seed.GetNumberValue()))
	}
	v, err := s.eval.Evaluate(src, scope)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(map[string]any{"value": v})
}

// Import handles {"yaml": string}.
func (s *Server) Import(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.importer == nil {
		return nil, status.Error(codes.Unimplemented, "import is disabled")
	}
	c, err := character.DecodeYAML(strings.NewReader(stringField(req, "yaml")))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := character.Validate(c); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.importer.Put(ctx, c); err != nil {
		return nil, toStatus(err)
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, c.ID); err != nil {
			s.logger.Warn("cache invalidation failed", zap.String("character", c.ID), zap.Error(err))
		}
	}
	s.logger.Info("character imported", zap.String("character", c.ID), zap.Int("items", len(c.Items)))
	return toStruct(map[string]any{"id": c.ID, "items": len(c.Items)})
}

// Roll handles {"dice": string}, e.g. "4d6kh3" or "1d20+5".
func (s *Server) Roll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	expr := stringField(req, "dice")
	if expr == "" {
		return nil, status.Error(codes.InvalidArgument, "dice is required")
	}
	res, err := s.roller.RollExpr(expr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	rolled := make([]any, len(res.Dice))
	for i, d := range res.Dice {
		rolled[i] = d
	}
	return toStruct(map[string]any{
		"expression": res.Expression,
		"dice":       rolled,
		"modifier":   res.Modifier,
		"total":      res.Total(),
	})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, postgres.ErrCharacterNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func resultMap(res *engine.Result, details bool) map[string]any {
	warnings := make([]any, len(res.Warnings))
	for i, w := range res.Warnings {
		warnings[i] = map[string]any{
			"code":    string(w.Code),
			"message": w.Message,
			"source":  w.Source,
			"target":  w.Target,
		}
	}
	flags := make([]any, len(res.Flags))
	for i, f := range res.Flags {
		flags[i] = string(f)
	}
	removed := make([]any, len(res.Removed))
	for i, r := range res.Removed {
		removed[i] = r
	}
	out := map[string]any{
		"character_id": res.CharacterID,
		"pass_id":      res.PassID.String(),
		"values":       floatMap(res.Values),
		"diff":         floatMap(res.Diff),
		"removed":      removed,
		"warnings":     warnings,
		"flags":        flags,
		"notice":       res.Notice,
		"hp_value":     res.HPValue,
	}
	if details {
		d := make(map[string]any, len(res.SourceDetails))
		for path, lines := range res.SourceDetails {
			ls := make([]any, len(lines))
			for i, l := range lines {
				ls[i] = map[string]any{"name": l.Name, "value": l.Value, "note": l.Note}
			}
			d[path] = ls
		}
		out["source_details"] = d
	}
	return out
}

func floatMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// flatten writes numeric and boolean leaves of st into out under dotted
// paths. Keys are visited in order so duplicates resolve deterministically.
func flatten(prefix string, st *structpb.Struct, out formula.Values) {
	keys := make([]string, 0, len(st.GetFields()))
	for k := range st.GetFields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch v := st.GetFields()[k].GetKind().(type) {
		case *structpb.Value_NumberValue:
			out[path] = v.NumberValue
		case *structpb.Value_BoolValue:
			if v.BoolValue {
				out[path] = 1
			} else {
				out[path] = 0
			}
		case *structpb.Value_StructValue:
			flatten(path, v.StructValue, out)
		}
	}
}

func stringField(st *structpb.Struct, key string) string {
	return st.GetFields()[key].GetStringValue()
}

func boolField(st *structpb.Struct, key string) bool {
	return st.GetFields()[key].GetBoolValue()
}
