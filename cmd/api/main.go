// cmd/api/main.go
package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
)

func main() {
	catalogServiceURL, _ := url.Parse(getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"))
	registrationServiceURL, _ := url.Parse(getEnv("REGISTRATION_SERVICE_URL", "http://localhost:8082"))
	membershipServiceURL, _ := url.Parse(getEnv("MEMBERSHIP_SERVICE_URL", "http://localhost:8083"))
	recommendationServiceURL, _ := url.Parse(getEnv("RECOMMENDATION_SERVICE_URL", "http://localhost:8084"))

	catalogProxy := httputil.NewSingleHostReverseProxy(catalogServiceURL)
	registrationProxy := httputil.NewSingleHostReverseProxy(registrationServiceURL)
	membershipProxy := httputil.NewSingleHostReverseProxy(membershipServiceURL)
	recommendationProxy := httputil.NewSingleHostReverseProxy(recommendationServiceURL)

	http.Handle("/api/v1/catalog/", http.StripPrefix("/api/v1/catalog", catalogProxy))
	http.Handle("/api/v1/registration/", http.StripPrefix("/api/v1/registration", registrationProxy))
	http.Handle("/api/v1/members/", http.StripPrefix("/api/v1/members", membershipProxy))
	http.Handle("/api/v1/recommendation/", http.StripPrefix("/api/v1/recommendation", recommendationProxy))

	port := getEnv("PORT", "8080")
	log.Printf("API Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
