package rewrite

import (
	"log/slog"
	"strconv"
	"strings"

	"sqlward/internal/domain"
)

// defaultTimeWindow is used when a time_window condition omits the
// interval literal.
const defaultTimeWindow = "30 days"

// Rewriter applies a single rule condition to a SQL statement. A
// malformed condition value never fails the pipeline: the statement is
// returned unchanged and the skip is logged so audits can see it.
type Rewriter struct {
	logger *slog.Logger
}

// NewRewriter creates a Rewriter. A nil logger falls back to slog.Default.
func NewRewriter(logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{logger: logger}
}

// Apply rewrites sqlText according to one condition. qt is the
// classification of the original statement; callers are responsible for
// checking the owning rule's query types before calling.
func (rw *Rewriter) Apply(cond domain.Condition, qt domain.QueryType, sqlText string) string {
	switch cond.Type {
	case domain.ConditionEnforceWhere:
		return rw.enforceWhere(cond, qt, sqlText)
	case domain.ConditionRestrictColumns:
		return rw.restrictColumns(cond, qt, sqlText)
	case domain.ConditionRowLimit:
		return rw.rowLimit(cond, qt, sqlText)
	case domain.ConditionTimeWindow:
		return rw.timeWindow(cond, qt, sqlText)
	default:
		rw.noop(cond, "unknown condition type")
		return sqlText
	}
}

// ApplyRule folds one rule's conditions, in list order, over sqlText.
// qt is classified once from the original statement and held fixed across
// the fold: rewriting must not change what kind of statement it is.
func (rw *Rewriter) ApplyRule(rule domain.Rule, qt domain.QueryType, sqlText string) string {
	if !rule.AppliesTo(qt) {
		return sqlText
	}
	for _, cond := range rule.Conditions {
		sqlText = rw.Apply(cond, qt, sqlText)
	}
	return sqlText
}

// enforceWhere ANDs a predicate onto the statement. Composition only ever
// narrows the result set: an existing WHERE keeps its predicate and gains
// "(<value>) AND " in front of it.
func (rw *Rewriter) enforceWhere(cond domain.Condition, qt domain.QueryType, sqlText string) string {
	if qt != domain.QuerySelect && qt != domain.QueryUpdate && qt != domain.QueryDelete {
		return sqlText
	}
	pred := strings.TrimSpace(cond.Value)
	if pred == "" {
		rw.noop(cond, "empty predicate")
		return sqlText
	}
	return injectPredicate(sqlText, pred)
}

// restrictColumns replaces a bare "SELECT *" select-list with the
// condition's allow-list. Explicit select-lists are left untouched:
// pruning named columns without a parser risks dropping expressions, so
// correctness wins over false precision.
func (rw *Rewriter) restrictColumns(cond domain.Condition, qt domain.QueryType, sqlText string) string {
	if qt != domain.QuerySelect {
		return sqlText
	}
	cols := splitColumns(cond.Value)
	if len(cols) == 0 {
		rw.noop(cond, "empty column list")
		return sqlText
	}
	if selectList(sqlText) != "*" {
		rw.noop(cond, "select-list already explicit")
		return sqlText
	}
	return replaceFirstFold(sqlText, "SELECT *", "SELECT "+strings.Join(cols, ", "))
}

// rowLimit appends LIMIT <n> when the statement has none. An existing
// LIMIT is never widened or narrowed: first applied wins, because
// composing multiple limits is undefined.
func (rw *Rewriter) rowLimit(cond domain.Condition, qt domain.QueryType, sqlText string) string {
	if qt != domain.QuerySelect {
		return sqlText
	}
	n, err := strconv.Atoi(strings.TrimSpace(cond.Value))
	if err != nil || n <= 0 {
		rw.noop(cond, "value is not a positive integer")
		return sqlText
	}
	if strings.Contains(strings.ToUpper(sqlText), " LIMIT ") {
		return sqlText
	}
	return sqlText + " LIMIT " + strconv.Itoa(n)
}

// timeWindow injects "<field> > NOW() - INTERVAL '<window>'" the same way
// enforce_where does. Value is "<field>:<interval>"; the interval
// defaults to 30 days when omitted.
func (rw *Rewriter) timeWindow(cond domain.Condition, qt domain.QueryType, sqlText string) string {
	if qt != domain.QuerySelect {
		return sqlText
	}
	field, window, ok := splitTimeWindow(cond.Value)
	if !ok {
		rw.noop(cond, "malformed time window")
		return sqlText
	}
	pred := field + " > NOW() - INTERVAL '" + window + "'"
	return injectPredicate(sqlText, pred)
}

func (rw *Rewriter) noop(cond domain.Condition, reason string) {
	rw.logger.Warn("condition skipped",
		"type", cond.Type,
		"value", cond.Value,
		"reason", reason,
	)
}

// injectPredicate appends a new WHERE clause, or ANDs pred in front of
// the existing predicate.
func injectPredicate(sqlText, pred string) string {
	if !strings.Contains(strings.ToUpper(sqlText), " WHERE ") {
		return sqlText + " WHERE " + pred
	}
	return replaceFirstFold(sqlText, "WHERE ", "WHERE ("+pred+") AND ")
}

// replaceFirstFold replaces the first case-insensitive occurrence of old
// in s. Returns s unchanged when old does not occur.
func replaceFirstFold(s, old, new string) string {
	i := strings.Index(strings.ToUpper(s), strings.ToUpper(old))
	if i < 0 {
		return s
	}
	return s[:i] + new + s[i+len(old):]
}

// selectList returns the trimmed text between the leading SELECT keyword
// and the first FROM, or "" when the statement has no FROM.
func selectList(sqlText string) string {
	upper := strings.ToUpper(sqlText)
	from := strings.Index(upper, "FROM")
	if from < 0 {
		return ""
	}
	head := strings.TrimSpace(sqlText[:from])
	if len(head) < len("SELECT") {
		return ""
	}
	return strings.TrimSpace(head[len("SELECT"):])
}

// splitColumns parses a comma-separated allow-list, dropping empties.
func splitColumns(value string) []string {
	var cols []string
	for _, c := range strings.Split(value, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// splitTimeWindow parses "<field>:<interval>". Quotes are rejected in
// both parts to keep the conservative-rewrite promise when the window is
// interpolated into an INTERVAL literal.
func splitTimeWindow(value string) (field, window string, ok bool) {
	field, window, _ = strings.Cut(value, ":")
	field = strings.TrimSpace(field)
	window = strings.TrimSpace(window)
	if window == "" {
		window = defaultTimeWindow
	}
	if field == "" || strings.ContainsAny(field, `'"`) || strings.ContainsAny(window, `'"`) {
		return "", "", false
	}
	return field, window, true
}
