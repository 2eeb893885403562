package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/craftplane/craftplane/internal/core/domain"
	"github.com/craftplane/craftplane/internal/core/ports"
	"github.com/craftplane/craftplane/internal/core/services"
)

// ProxyHandler routes subdomain requests (e.g. myserver.example.com) to the
// owning instance's container, for the server's map and status pages.
type ProxyHandler struct {
	lifecycle *services.Lifecycle
	instances ports.InstanceRegistry
}

func NewProxyHandler(lifecycle *services.Lifecycle, instances ports.InstanceRegistry) *ProxyHandler {
	return &ProxyHandler{lifecycle: lifecycle, instances: instances}
}

// ProxyRequest intercepts requests whose host carries a managed subdomain
// and reverse-proxies them to the container's internal address, resolved at
// request time. Unknown or stopped instances get a 404; the existence of a
// subdomain is public here by design, it is the name players connect to.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	host := c.Hostname()

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return c.Next()
	}
	subdomain := parts[0]
	if subdomain == "www" || subdomain == "" {
		return c.Next()
	}

	ctx := c.Context()
	inst, err := h.instances.BySubdomain(ctx, subdomain)
	if err != nil {
		return c.Next()
	}
	if status := h.lifecycle.Status(ctx, inst.ID); status.Key != domain.StatusRunning {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Server '%s' is not running", subdomain))
	}

	targetIP, err := h.lifecycle.ResolveIP(ctx, subdomain)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Server '%s' not found or not running", subdomain))
	}

	remote, err := url.Parse("http://" + targetIP)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite the Host header to the target so the application inside the
	// container sees a host it recognizes.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(fmt.Sprintf("Proxy Info: target=%s error=%v", targetIP, err)))
	}

	return adaptor.HTTPHandler(proxy)(c)
}
