package services

import (
	"net/http"
	"strconv"
)

// landlordFromContext pulls the authenticated account out of the request
// context populated by the auth middleware.
func landlordFromContext(r *http.Request) (id int, email string, ok bool) {
	raw, ok := r.Context().Value("userID").(string)
	if !ok || raw == "" {
		return 0, "", false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	email, _ = r.Context().Value("userEmail").(string)
	return id, email, true
}

func roleFromContext(r *http.Request) string {
	role, _ := r.Context().Value("userRole").(string)
	return role
}
