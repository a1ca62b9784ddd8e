package booknetwork

import (
	"context"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterRoutes mounts the full API surface: the public auth endpoints and
// the protected book endpoints. The jwtware gate must run before this group
// so protected handlers can read the caller from locals.
func RegisterRoutes[T any](app router.Router[T], opts ...ControllerOption) {
	controller := NewController(opts...)

	app.Post("/auth/register", controller.Register).SetName("auth.register")
	app.Post("/auth/authenticate", controller.Authenticate).SetName("auth.authenticate")
	app.Get("/auth/activate-account", controller.ActivateAccount).SetName("auth.activate")

	app.Post("/books", controller.SaveBook).SetName("books.create")
	app.Get("/books", controller.ListDisplayableBooks).SetName("books.list")
	app.Get("/books/owner", controller.ListOwnedBooks).SetName("books.owned")
	app.Get("/books/borrowed", controller.ListBorrowedBooks).SetName("books.borrowed")
	app.Get("/books/returned", controller.ListReturnedBooks).SetName("books.returned")
	app.Get("/books/:id", controller.FindBookByID).SetName("books.get")
	app.Patch("/books/:id/shareable", controller.ToggleShareable).SetName("books.shareable")
	app.Patch("/books/:id/archived", controller.ToggleArchived).SetName("books.archived")
	app.Post("/books/:id/borrow", controller.Borrow).SetName("books.borrow")
	app.Post("/books/:id/return", controller.ReturnBook).SetName("books.return")
	app.Post("/books/:id/return/approve", controller.ApproveReturn).SetName("books.approve")
	app.Post("/books/:id/cover", controller.UploadBookCover).SetName("books.cover")
}

type Controller struct {
	Debug      bool
	Logger     Logger
	Register_  *RegisterUserHandler
	Activate   *ActivateAccountHandler
	Auther     Authenticator
	Lending    *LendingService
	ContextKey string
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithRegisterHandler(h *RegisterUserHandler) ControllerOption {
	return func(c *Controller) *Controller {
		c.Register_ = h
		return c
	}
}

func WithActivateHandler(h *ActivateAccountHandler) ControllerOption {
	return func(c *Controller) *Controller {
		c.Activate = h
		return c
	}
}

func WithAuthenticator(a Authenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = a
		return c
	}
}

func WithLendingService(s *LendingService) ControllerOption {
	return func(c *Controller) *Controller {
		c.Lending = s
		return c
	}
}

func WithContextKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     defLogger{},
		ContextKey: "user",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Register_ == nil || c.Activate == nil {
		panic("Missing registration handlers in controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in controller...")
	}

	if c.Lending == nil {
		panic("Missing LendingService in controller...")
	}

	return c
}

// RegistrationPayload is the register request body.
type RegistrationPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Validate will run validation rules
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
	)
}

func (a *Controller) Register(ctx router.Context) error {
	payload := new(RegistrationPayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badBody(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.badPayload(ctx, err)
	}

	if a.Debug {
		fmt.Println("======= REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=======================")
	}

	id, err := a.Register_.Execute(ctx.Context(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
	})
	if err != nil {
		// dispatch failures still created the account
		if id != uuid.Nil {
			return ctx.JSON(router.StatusCreated, map[string]any{
				"id":      id.String(),
				"warning": "activation email could not be delivered",
			})
		}
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{"id": id.String()})
}

// AuthenticatePayload is the login request body.
type AuthenticatePayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r AuthenticatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *Controller) Authenticate(ctx router.Context) error {
	payload := new(AuthenticatePayload)

	if err := ctx.Bind(payload); err != nil {
		return a.badBody(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.badPayload(ctx, err)
	}

	token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{"token": token})
}

func (a *Controller) ActivateAccount(ctx router.Context) error {
	code := ctx.Query("token", "")
	if code == "" {
		return ctx.JSON(router.StatusBadRequest, ErrorResponse{
			Code:    "TOKEN_REQUIRED",
			Message: "activation token is required",
		})
	}

	if err := a.Activate.Execute(ctx.Context(), ActivateAccountMessage{Code: code}); err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{"status": "activated"})
}

// SaveBookPayload is the book create request body.
type SaveBookPayload struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
	ISBN       string `json:"isbn"`
	Synopsis   string `json:"synopsis"`
	Shareable  bool   `json:"shareable"`
}

// Validate will run validation rules
func (r SaveBookPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&r.AuthorName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Synopsis, validation.Length(0, 5000)),
	)
}

func (a *Controller) SaveBook(ctx router.Context) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	payload := new(SaveBookPayload)
	if err := ctx.Bind(payload); err != nil {
		return a.badBody(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return a.badPayload(ctx, err)
	}

	book, err := a.Lending.SaveBook(ctx.Context(), caller, &Book{
		Title:      payload.Title,
		AuthorName: payload.AuthorName,
		ISBN:       payload.ISBN,
		Synopsis:   payload.Synopsis,
		Shareable:  payload.Shareable,
	})
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusCreated, book)
}

func (a *Controller) FindBookByID(ctx router.Context) error {
	if _, err := CurrentUser(ctx, a.ContextKey); err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	id, err := a.bookID(ctx)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	book, err := a.Lending.FindBookByID(ctx.Context(), id)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, book)
}

func (a *Controller) ListDisplayableBooks(ctx router.Context) error {
	return a.listBooks(ctx, a.Lending.ListDisplayableBooks)
}

func (a *Controller) ListOwnedBooks(ctx router.Context) error {
	return a.listBooks(ctx, a.Lending.ListOwnedBooks)
}

func (a *Controller) listBooks(ctx router.Context, list func(c context.Context, caller Identity, page, size int) (*Page[*Book], error)) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	page, size := a.pagination(ctx)

	result, err := list(ctx.Context(), caller, page, size)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

func (a *Controller) ListBorrowedBooks(ctx router.Context) error {
	return a.listLoans(ctx, a.Lending.ListBorrowedBooks)
}

func (a *Controller) ListReturnedBooks(ctx router.Context) error {
	return a.listLoans(ctx, a.Lending.ListReturnedBooks)
}

func (a *Controller) listLoans(ctx router.Context, list func(c context.Context, caller Identity, page, size int) (*Page[*BookTransaction], error)) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	page, size := a.pagination(ctx)

	result, err := list(ctx.Context(), caller, page, size)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

func (a *Controller) Borrow(ctx router.Context) error {
	return a.loanAction(ctx, a.Lending.Borrow)
}

func (a *Controller) ReturnBook(ctx router.Context) error {
	return a.loanAction(ctx, a.Lending.ReturnBook)
}

func (a *Controller) ApproveReturn(ctx router.Context) error {
	return a.loanAction(ctx, a.Lending.ApproveReturn)
}

func (a *Controller) loanAction(ctx router.Context, act func(c context.Context, caller Identity, bookID uuid.UUID) (*BookTransaction, error)) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	id, err := a.bookID(ctx)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	record, err := act(ctx.Context(), caller, id)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, record)
}

func (a *Controller) ToggleShareable(ctx router.Context) error {
	return a.toggleAction(ctx, a.Lending.ToggleShareable)
}

func (a *Controller) ToggleArchived(ctx router.Context) error {
	return a.toggleAction(ctx, a.Lending.ToggleArchived)
}

func (a *Controller) toggleAction(ctx router.Context, act func(c context.Context, caller Identity, bookID uuid.UUID) (*Book, error)) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	id, err := a.bookID(ctx)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	book, err := act(ctx.Context(), caller, id)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, book)
}

func (a *Controller) UploadBookCover(ctx router.Context) error {
	caller, err := CurrentUser(ctx, a.ContextKey)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	id, err := a.bookID(ctx)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	data := ctx.Body()
	filename := ctx.GetString("X-Filename", "cover.jpg")

	book, err := a.Lending.UploadBookCover(ctx.Context(), caller, id, filename, data)
	if err != nil {
		return RenderError(ctx, a.Logger, err)
	}

	return ctx.JSON(router.StatusOK, book)
}

func (a *Controller) bookID(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id", "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, goerrors.New("book id must be a valid uuid", goerrors.CategoryBadInput).
			WithTextCode("INVALID_BOOK_ID")
	}
	return id, nil
}

func (a *Controller) pagination(ctx router.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.Query("page", "0"))
	size, _ := strconv.Atoi(ctx.Query("size", "10"))
	return page, size
}

func (a *Controller) badBody(ctx router.Context, err error) error {
	a.Logger.Debug("failed to parse request body: %v", err)
	return ctx.JSON(router.StatusBadRequest, ErrorResponse{
		Code:    "INVALID_BODY",
		Message: "failed to parse request body",
	})
}

func (a *Controller) badPayload(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, ErrorResponse{
		Code:    "VALIDATION_FAILED",
		Message: err.Error(),
	})
}
