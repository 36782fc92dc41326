package handler

import (
	"io"
	"mime/multipart"

	"go-fundo-ops/internal/apperr"
	"go-fundo-ops/internal/importer"
	"go-fundo-ops/internal/model"
	"go-fundo-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CatalogHandler struct {
	service service.CatalogService
}

func NewCatalogHandler(s service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: s}
}

// POST /api/v1/products
func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	if err := h.service.Create(c.UserContext(), &product, getActor(c)); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

// GET /api/v1/products?category=
func (h *CatalogHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.List(c.UserContext(), model.Category(c.Query("category")))
	if err != nil {
		return errorResponse(c, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(products)
}

// GET /api/v1/products/:code
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(product)
}

// PUT /api/v1/products/:code
func (h *CatalogHandler) UpdateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	updated, err := h.service.Update(c.UserContext(), c.Params("code"), &product, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// POST /api/v1/products/:code/disable
func (h *CatalogHandler) DisableProduct(c *fiber.Ctx) error {
	product, err := h.service.Disable(c.UserContext(), c.Params("code"), getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product disabled", "data": product})
}

// ImportCatalog takes multipart files "catalog" and, optionally, "stock".
// POST /api/v1/products/import
func (h *CatalogHandler) ImportCatalog(c *fiber.Ctx) error {
	catalogFile, err := c.FormFile("catalog")
	if err != nil {
		return badRequest(c, "catalog file is required")
	}
	catalog, err := readUpload(catalogFile, importer.ReadCatalog)
	if err != nil {
		return errorResponse(c, err)
	}

	var stock *importer.StockSheet
	if stockFile, err := c.FormFile("stock"); err == nil {
		stock, err = readUpload(stockFile, importer.ReadStock)
		if err != nil {
			return errorResponse(c, err)
		}
	}

	result, err := h.service.Import(c.UserContext(), catalog, stock, getActor(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

// readUpload parses one uploaded sheet. A sheet that cannot be read at all
// is a validation problem of the upload.
func readUpload[T any](fh *multipart.FileHeader, read func(io.Reader) (*T, error)) (*T, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out, err := read(f)
	if err != nil {
		return nil, apperr.Validation("%s: %s", fh.Filename, err.Error())
	}
	return out, nil
}
