package report

// htmlTemplate is the standalone report page.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.TestType}} test {{.RunID}} - gabsload report</title>
    <style>
        :root {
            --bg: #f8fafc;
            --card: #ffffff;
            --text: #1e293b;
            --muted: #64748b;
            --border: #e2e8f0;
            --good: #22c55e;
            --warn: #f59e0b;
            --bad: #ef4444;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
        }
        .container { max-width: 1100px; margin: 0 auto; padding: 2rem; }
        header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 2rem; }
        header p { color: var(--muted); }
        .grade { font-size: 3rem; font-weight: 700; width: 5rem; height: 5rem; border-radius: 50%;
                 display: flex; align-items: center; justify-content: center; color: #fff; }
        .grade.good { background: var(--good); }
        .grade.warn { background: var(--warn); }
        .grade.bad { background: var(--bad); }
        .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1rem; margin-bottom: 2rem; }
        .card { background: var(--card); border: 1px solid var(--border); border-radius: 8px; padding: 1rem; }
        .card .label { color: var(--muted); font-size: 0.85rem; }
        .card .value { font-size: 1.5rem; font-weight: 600; }
        section { background: var(--card); border: 1px solid var(--border); border-radius: 8px; padding: 1.5rem; margin-bottom: 1.5rem; }
        h2 { font-size: 1.1rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid var(--border); }
        th { color: var(--muted); font-weight: 500; }
        .pass { color: var(--good); font-weight: 600; }
        .fail { color: var(--bad); font-weight: 600; }
        ul { padding-left: 1.25rem; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <div>
            <h1>{{.TestType}} test</h1>
            <p>Run {{.RunID}} &middot; {{.StartTime.Format "2006-01-02 15:04:05 MST"}} &middot; {{formatDuration .Duration}}</p>
            <p>{{if .Passed}}<span class="pass">All thresholds passed</span>{{else}}<span class="fail">{{len .FailedThresholds}} threshold(s) failed</span>{{end}}</p>
        </div>
        <div class="grade {{gradeClass .Grade}}" title="score {{.Score}}/100">{{.Grade}}</div>
    </header>

    <div class="cards">
        <div class="card"><div class="label">Requests</div><div class="value">{{formatNumber .Requests.Total}}</div></div>
        <div class="card"><div class="label">Error rate</div><div class="value">{{printf "%.2f%%" .Requests.ErrorRate}}</div></div>
        <div class="card"><div class="label">Requests/s</div><div class="value">{{printf "%.1f" .Requests.PerSecond}}</div></div>
        <div class="card"><div class="label">P95 latency</div><div class="value">{{formatMs .Requests.P95Ms}}</div></div>
        <div class="card"><div class="label">Score</div><div class="value">{{.Score}}/100</div></div>
    </div>

    <section>
        <h2>Business</h2>
        <table>
            <tr><th>Metric</th><th>Value</th></tr>
            <tr><td>Order success</td><td>{{percent .Business.OrderSuccess}}</td></tr>
            <tr><td>Login success</td><td>{{percent .Business.LoginSuccess}}</td></tr>
            <tr><td>Delivery completion</td><td>{{percent .Business.DeliveryCompletion}}</td></tr>
            <tr><td>Journey success</td><td>{{percent .Iterations.Success}}</td></tr>
            <tr><td>Checks</td><td>{{percent .Checks}}</td></tr>
            <tr><td>Orders placed</td><td>{{formatNumber .Business.OrdersPlaced}}</td></tr>
            <tr><td>Orders accepted</td><td>{{formatNumber .Business.OrdersAccepted}}</td></tr>
            <tr><td>Deliveries completed</td><td>{{formatNumber .Business.DeliveriesCompleted}}</td></tr>
            <tr><td>Vendor browses</td><td>{{formatNumber .Business.VendorBrowses}}</td></tr>
            <tr><td>Menu views</td><td>{{formatNumber .Business.MenuViews}}</td></tr>
        </table>
    </section>

    <section>
        <h2>Journeys</h2>
        <table>
            <tr><th>Actor</th><th>Count</th><th>Avg</th><th>P95</th></tr>
            {{range $kind := .Kinds}}{{with index $.Journeys $kind}}
            <tr><td>{{$kind}}</td><td>{{formatNumber .Count}}</td><td>{{if .Observed}}{{formatMs .AvgMs}}{{else}}-{{end}}</td><td>{{if .Observed}}{{formatMs .P95Ms}}{{else}}-{{end}}</td></tr>
            {{end}}{{end}}
        </table>
    </section>

    {{if .Thresholds}}
    <section>
        <h2>Thresholds</h2>
        <table>
            <tr><th></th><th>Metric</th><th>Expression</th><th>Actual</th></tr>
            {{range .Thresholds}}
            <tr>
                <td>{{if .Passed}}<span class="pass">&#10003;</span>{{else}}<span class="fail">&#10007;</span>{{end}}</td>
                <td>{{.Metric}}</td>
                <td>{{.Expression}}</td>
                <td>{{if .Skipped}}no samples{{else}}{{printf "%.4g" .Value}}{{end}}</td>
            </tr>
            {{end}}
        </table>
    </section>
    {{end}}

    {{if .Phases}}
    <section>
        <h2>Phases</h2>
        <table>
            <tr><th>Phase</th><th>Entered</th><th>Requests so far</th></tr>
            {{range .Phases}}
            <tr><td>{{.Phase}}</td><td>{{.Timestamp.Format "15:04:05.000"}}</td><td>{{formatNumber .Requests}}</td></tr>
            {{end}}
        </table>
    </section>
    {{end}}

    <section>
        <h2>Recommendations</h2>
        <ul>
            {{range .Recommendations}}<li>{{.}}</li>{{end}}
        </ul>
    </section>
</div>
</body>
</html>
`
