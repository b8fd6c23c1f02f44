package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/erp/mall-admin/internal/application/form"
	"github.com/erp/mall-admin/internal/application/listing"
	"github.com/erp/mall-admin/internal/domain/pms"
	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/interfaces/console"
	"go.uber.org/zap"
)

// Console locations of the catalog screens
const (
	RouteBrand        = "/pms/brand"
	RouteProduct      = "/pms/product"
	RouteCategory     = "/pms/productCate"
	RouteAttrCategory = "/pms/productAttr"
	RouteAttribute    = "/pms/productAttrList"
)

var routes = map[string]string{
	pms.EntityBrand:        RouteBrand,
	pms.EntityProduct:      RouteProduct,
	pms.EntityCategory:     RouteCategory,
	pms.EntityAttrCategory: RouteAttrCategory,
	pms.EntityAttribute:    RouteAttribute,
}

// entity is one catalog screen as seen from the command line
type entity interface {
	list(ctx context.Context, q shared.PageQuery) error
	batch(ctx context.Context, q shared.PageQuery, op string, ids []int64) error
	remove(ctx context.Context, q shared.PageQuery, ids []int64) error
	operations() []listing.BatchAction
	get(ctx context.Context, id int64) error
	create(ctx context.Context, data []byte) error
	update(ctx context.Context, id int64, data []byte) error
}

// target holds the flags shared by the entity commands
type target struct {
	keyword      string
	sn           string
	parent       int64
	cid          int64
	attrType     int
	brand        int64
	categoryPath string
	publish      int
	verify       int
	page         int
	size         int
	file         string
}

func (t *target) register(fs *flag.FlagSet) {
	fs.StringVar(&t.keyword, "keyword", "", "Filter by keyword")
	fs.StringVar(&t.sn, "sn", "", "Filter products by serial number")
	fs.Int64Var(&t.parent, "parent", 0, "Parent category id")
	fs.Int64Var(&t.cid, "cid", 0, "Attribute category id")
	fs.IntVar(&t.attrType, "type", 0, "Attribute type: 0 spec, 1 param")
	fs.Int64Var(&t.brand, "brand", 0, "Filter products by brand id")
	fs.StringVar(&t.categoryPath, "category-path", "", "Filter products by category path, e.g. 21,25")
	fs.IntVar(&t.publish, "publish", -1, "Filter products by publish status")
	fs.IntVar(&t.verify, "verify", -1, "Filter products by verify status")
	fs.IntVar(&t.page, "page", 1, "Page number")
	fs.IntVar(&t.size, "size", shared.DefaultPageSize, "Page size")
	fs.StringVar(&t.file, "f", "", "YAML or JSON input file, - for stdin")
}

func (t *target) pageQuery() shared.PageQuery {
	return shared.PageQuery{PageNum: t.page, PageSize: t.size}.Normalize()
}

func (a *App) runEntity(ctx context.Context, cmd string, args []string) error {
	var t target
	fs := newFlagSet(cmd)
	t.register(fs)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) == 0 {
		return fmt.Errorf("%w: %s needs an entity", ErrUsage, cmd)
	}

	location, ok := routes[pos[0]]
	if !ok {
		return fmt.Errorf("%w: %q (one of %s)", shared.ErrUnknownEntity, pos[0], strings.Join(Entities(), ", "))
	}
	if cmd == "list" {
		location = fmt.Sprintf("%s?pageNum=%d", location, t.pageQuery().PageNum)
	}
	if err := a.enter(ctx, location); err != nil {
		return err
	}
	e, err := a.entity(ctx, pos[0], &t)
	if err != nil {
		return err
	}
	rest := pos[1:]

	switch cmd {
	case "list":
		return e.list(ctx, t.pageQuery())
	case "ops":
		return a.printOperations(e.operations())
	case "batch":
		if len(rest) < 2 {
			return fmt.Errorf("%w: batch <entity> <op> <ids...>", ErrUsage)
		}
		ids, err := parseIDs(rest[1:])
		if err != nil {
			return err
		}
		return e.batch(ctx, t.pageQuery(), rest[0], ids)
	case "delete":
		ids, err := parseIDs(rest)
		if err != nil {
			return err
		}
		return e.remove(ctx, t.pageQuery(), ids)
	case "get":
		id, err := singleID(rest)
		if err != nil {
			return err
		}
		return e.get(ctx, id)
	case "create":
		data, err := a.readInput(t.file)
		if err != nil {
			return err
		}
		return e.create(ctx, data)
	case "update":
		id, err := singleID(rest)
		if err != nil {
			return err
		}
		data, err := a.readInput(t.file)
		if err != nil {
			return err
		}
		return e.update(ctx, id, data)
	}
	return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
}

func singleID(args []string) (int64, error) {
	ids, err := parseIDs(args)
	if err != nil {
		return 0, err
	}
	if len(ids) != 1 {
		return 0, fmt.Errorf("%w: expected one id", ErrUsage)
	}
	return ids[0], nil
}

func (a *App) readInput(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, fmt.Errorf("%w: -f is required", ErrUsage)
	case "-":
		return io.ReadAll(a.in)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}
}

func (a *App) printOperations(ops []listing.BatchAction) error {
	return console.RenderTable(a.out, []console.Column[listing.BatchAction]{
		{Header: "OP", Value: func(b listing.BatchAction) string { return b.Op }},
		{Header: "DESCRIPTION", Value: func(b listing.BatchAction) string { return b.Label }},
	}, ops, nil)
}

// screen adapts a list resource and its form binding to the commands
type screen[T any, F shared.Filter] struct {
	app     *App
	res     listing.Resource[T, F]
	columns []console.Column[T]
	form    form.Binding[T]

	// creating and editing replace the form binding when set
	creating func(ctx context.Context) (form.Binding[T], error)
	editing  func(ctx context.Context, id int64) (form.Binding[T], error)
}

func (s *screen[T, F]) operations() []listing.BatchAction { return s.res.Actions }

func (s *screen[T, F]) open(ctx context.Context, q shared.PageQuery) (*listing.Controller[T, F], listing.ListView[T], error) {
	c := listing.New(s.res, s.app.deps.Cache, s.app.deps.Notifier,
		listing.WithLogger(s.app.logger),
		listing.WithPageQuery(q))
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, listing.ListView[T]{}, err
	}
	v, err := c.Wait(ctx)
	if err != nil {
		c.Close()
		return nil, v, err
	}
	return c, v, nil
}

func (s *screen[T, F]) render(v listing.ListView[T]) error {
	selected := make(map[int64]bool, len(v.Selection))
	for _, id := range v.Selection {
		selected[id] = true
	}
	if err := console.RenderTable(s.app.out, s.columns, v.Rows, func(row T) bool {
		return selected[s.res.ID(row)]
	}); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.app.out, console.PageFooter(v.Query.PageNum, v.Query.PageSize, v.TotalPage, v.Total))
	return err
}

func (s *screen[T, F]) list(ctx context.Context, q shared.PageQuery) error {
	c, v, err := s.open(ctx, q)
	if err != nil {
		return err
	}
	defer c.Close()
	return s.render(v)
}

func (s *screen[T, F]) batch(ctx context.Context, q shared.PageQuery, op string, ids []int64) error {
	c, v, err := s.open(ctx, q)
	if err != nil {
		return err
	}
	defer c.Close()

	c.SelectRows(ids)
	c.SetBatchOperation(op)
	selection := c.View().Selection
	for _, id := range ids {
		if !containsID(selection, id) {
			s.app.deps.Notifier.Warning(fmt.Sprintf("Record %d is not on page %d", id, v.Query.PageNum))
		}
	}

	if action, ok := s.res.Action(op); ok && len(selection) > 0 {
		msg := fmt.Sprintf("%s: %d record(s)?", action.Label, len(selection))
		if !s.app.deps.Confirmer.Confirm(ctx, msg) {
			return shared.ErrSubmitCancelled
		}
	}
	if err := c.DispatchBatch(ctx); err != nil {
		return err
	}
	return s.refreshed(ctx, c)
}

func (s *screen[T, F]) remove(ctx context.Context, q shared.PageQuery, ids []int64) error {
	c, _, err := s.open(ctx, q)
	if err != nil {
		return err
	}
	defer c.Close()

	if len(ids) > 0 {
		msg := fmt.Sprintf("Delete %d %s record(s)?", len(ids), s.res.Name)
		if !s.app.deps.Confirmer.Confirm(ctx, msg) {
			return shared.ErrSubmitCancelled
		}
	}
	if err := c.DeleteRows(ctx, ids...); err != nil {
		return err
	}
	return s.refreshed(ctx, c)
}

// refreshed renders the list once the refetch that follows a mutation
// has settled
func (s *screen[T, F]) refreshed(ctx context.Context, c *listing.Controller[T, F]) error {
	v, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	return s.render(v)
}

func (s *screen[T, F]) editBinding(ctx context.Context, id int64) (form.Binding[T], error) {
	if s.editing != nil {
		return s.editing(ctx, id)
	}
	return s.form, nil
}

func (s *screen[T, F]) get(ctx context.Context, id int64) error {
	b, err := s.editBinding(ctx, id)
	if err != nil {
		return err
	}
	f := form.NewEdit(b, id, s.app.collaborators(), form.WithLogger(s.app.logger))
	if err := f.Load(ctx); err != nil {
		return err
	}
	return writeYAML(s.app.out, f.Values())
}

func (s *screen[T, F]) create(ctx context.Context, data []byte) error {
	b := s.form
	if s.creating != nil {
		var err error
		if b, err = s.creating(ctx); err != nil {
			return err
		}
	}
	f := form.NewCreate(b, s.app.collaborators(),
		form.WithLogger(s.app.logger),
		form.WithBackAfterCreate())
	return s.submit(ctx, f, data)
}

func (s *screen[T, F]) update(ctx context.Context, id int64, data []byte) error {
	b, err := s.editBinding(ctx, id)
	if err != nil {
		return err
	}
	f := form.NewEdit(b, id, s.app.collaborators(), form.WithLogger(s.app.logger))
	return s.submit(ctx, f, data)
}

// submit loads the form, overlays the fields present in data and submits
func (s *screen[T, F]) submit(ctx context.Context, f *form.Controller[T], data []byte) error {
	if err := f.Load(ctx); err != nil {
		return err
	}
	values := f.Values()
	if err := decodeInto(data, &values); err != nil {
		return err
	}
	f.SetValues(values)

	if err := f.Submit(ctx); err != nil {
		s.app.reportFields(f.FieldErrors())
		s.app.logger.Debug("Submit failed", zap.String("entity", s.res.Name), zap.Error(err))
		return err
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// entity resolves the screen named by name, with the filter taken from t
func (a *App) entity(ctx context.Context, name string, t *target) (entity, error) {
	api := a.deps.Catalog.API()

	switch name {
	case pms.EntityBrand:
		res := api.BrandResource()
		res.DefaultFilter = pms.BrandFilter{Keyword: t.keyword}
		return &screen[pms.Brand, pms.BrandFilter]{
			app: a, res: res, columns: brandColumns, form: api.BrandForm(),
		}, nil

	case pms.EntityProduct:
		filter, err := a.productFilter(ctx, t)
		if err != nil {
			return nil, err
		}
		res := api.ProductResource()
		res.DefaultFilter = filter
		return &screen[pms.Product, pms.ProductFilter]{
			app: a, res: res, columns: productColumns, form: api.ProductForm(),
		}, nil

	case pms.EntityCategory:
		parent := t.parent
		return &screen[pms.ProductCategory, pms.CategoryFilter]{
			app: a, res: api.CategoryResource(parent), columns: categoryColumns,
			form: api.CategoryForm(),
			creating: func(ctx context.Context) (form.Binding[pms.ProductCategory], error) {
				defaults, err := a.deps.Catalog.NewCategory(ctx, parent)
				if err != nil {
					a.deps.Notifier.Warning(pms.ErrInvalidParent.Message)
					return form.Binding[pms.ProductCategory]{}, err
				}
				b := api.CategoryForm()
				b.Defaults = func() pms.ProductCategory { return defaults }
				return b, nil
			},
		}, nil

	case pms.EntityAttrCategory:
		return &screen[pms.ProductAttrCategory, shared.NoFilter]{
			app: a, res: api.AttrCategoryResource(), columns: attrCategoryColumns,
			form: api.AttrCategoryForm(pms.ProductAttrCategory{}),
			editing: func(ctx context.Context, id int64) (form.Binding[pms.ProductAttrCategory], error) {
				all, err := api.AttrCategoriesWithAttr(ctx)
				if err != nil {
					return form.Binding[pms.ProductAttrCategory]{}, err
				}
				for _, c := range all {
					if c.ID == id {
						return api.AttrCategoryForm(c), nil
					}
				}
				return form.Binding[pms.ProductAttrCategory]{}, fmt.Errorf("%w: attribute category %d not found", shared.ErrInvalidInput, id)
			},
		}, nil

	case pms.EntityAttribute:
		return &screen[pms.ProductAttribute, pms.AttributeFilter]{
			app: a, res: api.AttributeResource(t.cid, t.attrType), columns: attributeColumns,
			form: api.AttributeForm(t.cid, t.attrType),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q (one of %s)", shared.ErrUnknownEntity, name, strings.Join(Entities(), ", "))
}

// Entities lists the entity names accepted by the commands
func Entities() []string {
	return []string{pms.EntityBrand, pms.EntityProduct, pms.EntityCategory, pms.EntityAttrCategory, pms.EntityAttribute}
}

func (a *App) productFilter(ctx context.Context, t *target) (pms.ProductFilter, error) {
	f := pms.ProductFilter{Keyword: t.keyword, ProductSn: t.sn}
	if t.brand > 0 {
		brand := t.brand
		f.BrandID = &brand
	}
	if t.publish >= 0 {
		publish := t.publish
		f.PublishStatus = &publish
	}
	if t.verify >= 0 {
		verify := t.verify
		f.VerifyStatus = &verify
	}
	if t.categoryPath == "" {
		return f, nil
	}
	path, err := parseIDs([]string{t.categoryPath})
	if err != nil {
		return f, err
	}
	return a.deps.Catalog.ProductCategoryFilter(ctx, f, path)
}
