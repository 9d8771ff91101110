package services

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// baseAlias names the subquery every derived statement wraps the report in.
const baseAlias = "baseq"

// likeEscape is the escape character declared on every LIKE predicate.
const likeEscape = `\`

var errNoColumns = errors.New("report has no columns")

// CompiledQuery holds the derived statements for one grid request, already
// rendered in the datasource's placeholder syntax.
// Args are ordered base, then filter, then paging.
type CompiledQuery struct {
	CountSQL  string
	CountArgs []any

	FilteredCountSQL  string
	FilteredCountArgs []any

	// DataSQL selects every filtered row in sort order. Exports stream it.
	DataSQL  string
	DataArgs []any

	PagedSQL  string
	PagedArgs []any

	// Filtered is false when no search applies; the filtered count then
	// equals the total.
	Filtered bool

	SortColumn    string
	SortDirection models.SortDirection
}

// QueryCompiler wraps an opaque base query in count, filter, sort and paging
// clauses. The base query is never parsed. Column names come from the schema
// probe and are always quoted; search values are always bound.
type QueryCompiler struct {
	dialect datasource.Dialect
	logger  *zap.Logger
}

func NewQueryCompiler(dialect datasource.Dialect, logger *zap.Logger) *QueryCompiler {
	return &QueryCompiler{
		dialect: dialect,
		logger:  logger.Named("query_compiler"),
	}
}

// Compile derives the statements for req. base uses `?` markers with literal
// question marks escaped as `??` (see sql.BindParameters).
func (c *QueryCompiler) Compile(base string, baseArgs []any, columns []models.ColumnDescriptor, req *models.GridRequest) (*CompiledQuery, error) {
	if len(columns) == 0 {
		return nil, errNoColumns
	}

	from := "(" + base + ") AS " + baseAlias
	filter := c.buildFilter(columns, req)
	sortCol, sortDir := c.resolveSort(columns, req)

	out := &CompiledQuery{
		Filtered:      filter != nil,
		SortColumn:    sortCol,
		SortDirection: sortDir,
	}

	count := sq.Select("COUNT(*)").From(from).PlaceholderFormat(sq.Question)
	var err error
	if out.CountSQL, out.CountArgs, err = c.render(count, baseArgs); err != nil {
		return nil, fmt.Errorf("compile count: %w", err)
	}

	if filter != nil {
		count = count.Where(filter)
	}
	if out.FilteredCountSQL, out.FilteredCountArgs, err = c.render(count, baseArgs); err != nil {
		return nil, fmt.Errorf("compile filtered count: %w", err)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = c.quote(col.Name)
	}
	data := sq.Select(quoted...).
		From(from).
		OrderBy(c.orderBy(columns, sortCol, sortDir)...).
		PlaceholderFormat(sq.Question)
	if filter != nil {
		data = data.Where(filter)
	}
	if out.DataSQL, out.DataArgs, err = c.render(data, baseArgs); err != nil {
		return nil, fmt.Errorf("compile data: %w", err)
	}

	start, length := req.Start, models.ClampPageLength(req.Length)
	if start < 0 {
		start = 0
	}
	pageClause, pageArgs := c.dialect.Paginate(start, length)
	if out.PagedSQL, out.PagedArgs, err = c.render(data.Suffix(pageClause, pageArgs...), baseArgs); err != nil {
		return nil, fmt.Errorf("compile paged data: %w", err)
	}

	return out, nil
}

// render builds b with `?` markers, prepends the base args (the FROM subquery is
// the first part of every statement to carry binds) and converts to the
// dialect's placeholder syntax.
func (c *QueryCompiler) render(b sq.SelectBuilder, baseArgs []any) (string, []any, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return "", nil, err
	}
	query, err = c.dialect.PlaceholderFormat().ReplacePlaceholders(query)
	if err != nil {
		return "", nil, err
	}
	all := make([]any, 0, len(baseArgs)+len(args))
	all = append(all, baseArgs...)
	all = append(all, args...)
	return query, all, nil
}

// buildFilter returns the WHERE predicate for the request's searches, or nil.
// The global term is ORed across text-searchable columns and matches nothing
// when there are none; per-column terms on text-searchable columns are ANDed.
// Terms on other columns are ignored.
func (c *QueryCompiler) buildFilter(columns []models.ColumnDescriptor, req *models.GridRequest) sq.Sqlizer {
	var conds sq.And

	if req.GlobalSearch != "" {
		pattern := "%" + escapeLike(req.GlobalSearch) + "%"
		var anyColumn sq.Or
		for _, col := range columns {
			if col.IsSearchableText {
				anyColumn = append(anyColumn, c.like(col, pattern))
			}
		}
		if len(anyColumn) > 0 {
			conds = append(conds, anyColumn)
		} else {
			// Nothing can match the term.
			conds = append(conds, sq.Expr("1 = 0"))
		}
	}

	for idx := 0; idx < len(columns); idx++ {
		term := req.ColumnSearch[idx]
		if term == "" {
			continue
		}
		if !columns[idx].IsSearchableText {
			c.logger.Debug("Ignoring search on non-text column",
				zap.String("column", columns[idx].Name),
				zap.String("type", columns[idx].Type))
			continue
		}
		conds = append(conds, c.like(columns[idx], "%"+escapeLike(term)+"%"))
	}

	if len(conds) == 0 {
		return nil
	}
	return conds
}

func (c *QueryCompiler) like(col models.ColumnDescriptor, pattern string) sq.Sqlizer {
	operand := c.dialect.LikeOperand(c.quote(col.Name), col.Type)
	return sq.Expr(operand+" LIKE ? ESCAPE '"+likeEscape+"'", pattern)
}

// orderBy sorts on the requested column, then on every other column ascending
// so that rows tied on the sort key keep a stable order across pages.
func (c *QueryCompiler) orderBy(columns []models.ColumnDescriptor, sortCol string, sortDir models.SortDirection) []string {
	terms := []string{c.quote(sortCol) + " " + string(sortDir)}
	for _, col := range columns {
		if col.Name == sortCol {
			continue
		}
		terms = append(terms, c.quote(col.Name)+" "+string(models.SortAsc))
	}
	return terms
}

// quote quotes a column name and escapes any `?` in it so it is not taken for a
// bind marker.
func (c *QueryCompiler) quote(name string) string {
	return strings.ReplaceAll(c.dialect.QuoteIdentifier(name), "?", "??")
}

// resolveSort picks the ORDER BY column and direction. Anything out of range
// degrades to the first column ascending.
func (c *QueryCompiler) resolveSort(columns []models.ColumnDescriptor, req *models.GridRequest) (string, models.SortDirection) {
	idx := req.SortColumn
	if idx < 0 || idx >= len(columns) {
		c.logger.Debug("Sort column out of range, using first column",
			zap.Int("requested", idx),
			zap.Int("columns", len(columns)))
		idx = 0
	}

	dir := req.SortDirection
	switch dir {
	case models.SortAsc, models.SortDesc:
	case "":
		dir = models.SortAsc
	default:
		c.logger.Warn("Invalid sort direction, using ascending",
			zap.String("direction", string(dir)))
		dir = models.SortAsc
	}

	return columns[idx].Name, dir
}

// escapeLike makes `\`, `%` and `_` in a user term match literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	)
	return r.Replace(term)
}
