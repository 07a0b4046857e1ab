// Package aws provides the AWS service display-name registry
package aws

import "sort"

// EC2Compute is the Cost Explorer SERVICE value for EC2 instance usage
const EC2Compute = "Amazon Elastic Compute Cloud - Compute"

// serviceDisplayNames maps Cost Explorer SERVICE values to dashboard names.
// Read-only after init.
var serviceDisplayNames = map[string]string{
	// Compute
	EC2Compute: "Amazon EC2",

	// Storage
	"Amazon Simple Storage Service": "Amazon S3",
	"Amazon Elastic Block Store":    "Amazon EBS",

	// Database
	"Amazon RDS Service": "Amazon RDS",
	"Amazon DynamoDB":    "Amazon DynamoDB",

	// Monitoring
	"Amazon CloudWatch": "Amazon CloudWatch",
}

// DisplayName returns the dashboard name for a raw service, or the raw name if unmapped
func DisplayName(service string) string {
	if name, ok := serviceDisplayNames[service]; ok {
		return name
	}
	return service
}

// SupportedServices returns all raw service names with a display mapping
func SupportedServices() []string {
	services := make([]string, 0, len(serviceDisplayNames))
	for s := range serviceDisplayNames {
		services = append(services, s)
	}
	sort.Strings(services)
	return services
}
