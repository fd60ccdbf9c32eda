package mockserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// query parameters that are not field filters
var reservedParams = map[string]bool{"page": true, "page_size": true, "search": true, "ordering": true}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func (s *Server) registerCollection(g *gin.RouterGroup, path string) {
	col := s.collections[path]
	g.GET(path, s.listItems(col))
	g.POST(path, s.createItem(col))
	g.GET(path+":id/", s.getItem(col))
	g.PUT(path+":id/", s.updateItem(col, false))
	g.PATCH(path+":id/", s.updateItem(col, true))
	g.DELETE(path+":id/", s.deleteItem(col))
}

func itemID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	return id, err == nil && id > 0
}

func bindItem(c *gin.Context) (item, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, false
	}
	var it item
	if err = json.Unmarshal(raw, &it); err != nil || it == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error"})
		return nil, false
	}
	return it, true
}

func (s *Server) listItems(col *collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		filters := map[string]string{}
		for k, v := range c.Request.URL.Query() {
			if !reservedParams[k] && len(v) > 0 {
				filters[k] = v[0]
			}
		}
		items := col.list(filters, c.Query("search"))

		pageSize := s.cfg.PageSize
		if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
			pageSize = v
		}
		if pageSize <= 0 {
			c.JSON(http.StatusOK, items)
			return
		}

		page := 1
		if v := c.Query("page"); v != "" {
			p, err := strconv.Atoi(v)
			if err != nil || p < 1 {
				c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
				return
			}
			page = p
		}
		start := (page - 1) * pageSize
		if start > 0 && start >= len(items) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
			return
		}
		end := min(start+pageSize, len(items))

		c.JSON(http.StatusOK, gin.H{
			"count":    len(items),
			"next":     pageURL(c, page+1, end < len(items)),
			"previous": pageURL(c, page-1, page > 1),
			"results":  items[start:end],
		})
	}
}

// pageURL returns the absolute url of another page of the current listing, nil when there is none.
func pageURL(c *gin.Context, page int, ok bool) any {
	if !ok {
		return nil
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func (s *Server) createItem(col *collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		it, ok := bindItem(c)
		if !ok {
			return
		}
		if errs := col.missing(it); len(errs) > 0 {
			c.JSON(http.StatusBadRequest, errs)
			return
		}
		delete(it, "id")
		c.JSON(http.StatusCreated, col.create(it))
	}
}

func (s *Server) getItem(col *collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			notFound(c)
			return
		}
		it, ok := col.get(id)
		if !ok {
			notFound(c)
			return
		}
		c.JSON(http.StatusOK, it)
	}
}

func (s *Server) updateItem(col *collection, partial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			notFound(c)
			return
		}
		it, ok := bindItem(c)
		if !ok {
			return
		}
		if !partial {
			if errs := col.missing(it); len(errs) > 0 {
				c.JSON(http.StatusBadRequest, errs)
				return
			}
		}
		out, ok := col.update(id, it, partial)
		if !ok {
			notFound(c)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) deleteItem(col *collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok || !col.delete(id) {
			notFound(c)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) downloadDocument(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		notFound(c)
		return
	}
	doc, ok := s.collections["/documents/"].get(id)
	if !ok {
		notFound(c)
		return
	}
	name, _ := doc["fichier"].(string)
	if name == "" {
		name = fmt.Sprintf("document-%d.pdf", id)
	}
	body := fmt.Sprintf("%%PDF-1.4\n%% %v\n%%%%EOF\n", doc["titre"])
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", []byte(body))
}

type generateForm struct {
	Student int `json:"etudiant" binding:"required"`
}

// generateFromTemplate renders a template for a student, placeholders are {{field}}.
func (s *Server) generateFromTemplate(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		notFound(c)
		return
	}
	tpl, ok := s.collections["/templates/"].get(id)
	if !ok {
		notFound(c)
		return
	}
	var form generateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	student, ok := s.collections["/etudiants/"].get(form.Student)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"etudiant": []string{"Invalid pk - object does not exist."}})
		return
	}

	content, _ := tpl["contenu"].(string)
	for k, v := range student {
		content = strings.ReplaceAll(content, "{{"+k+"}}", fmt.Sprint(v))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("template-%d-%v.txt", id, student["matricule"])))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}
