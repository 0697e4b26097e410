package main

import (
	"html/template"
	"net/http"

	"github.com/anoano/portal/authapi"
	"github.com/anoano/portal/student"
)

var loginPageTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
<h1>Intern portal</h1>
{{if .From}}<p>Sign in to continue to {{.From}}.</p>{{end}}
<p><a href="/auth/login">Sign in</a></p>
</body>
</html>
`))

var studentPageTemplate = template.Must(template.New("students").Parse(`<!DOCTYPE html>
<html>
<head><title>Students</title></head>
<body>
<p>
{{if .User}}Signed in as {{if .User.Name}}{{.User.Name}}{{else}}{{.User.Email}}{{end}}.{{end}}
<a href="/auth/logout">Sign out</a>
</p>
<h1>Students</h1>
{{if .Students}}
<table>
<tr><th>ID</th><th>Name</th><th>Age</th><th>Gender</th></tr>
{{range .Students}}<tr><td>{{.ID}}</td><td>{{.Name}}</td><td>{{.Age}}</td><td>{{.Gender}}</td></tr>
{{end}}
</table>
{{else}}
<p>No students yet.</p>
{{end}}
</body>
</html>
`))

func (a *app) loginPage(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPageTemplate.Execute(w, map[string]string{
		"From": req.URL.Query().Get("from"),
	})
}

func (a *app) studentPage(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	d := depsFrom(ctx)

	// the profile is decoration here, the guard already decided access
	user, err := d.auth.CurrentUser(ctx)
	if err != nil {
		user = nil
	}
	students, err := d.students.List(ctx)
	if err != nil {
		a.logger.Error("unable to list students", "error", err)
		http.Error(w, "student service unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = studentPageTemplate.Execute(w, struct {
		User     *authapi.User
		Students []student.Student
	}{User: user, Students: students})
}
